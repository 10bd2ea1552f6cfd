package main

import (
	"fmt"
	"log"
)

// insertWebsiteCategory adds a single join row. Shared by the moderation
// workflow and the admin category editor.
func insertWebsiteCategory(websiteID, categoryID uint) error {
	return db.Exec(
		"INSERT INTO website_categories (website_id, category_id) VALUES (?, ?)",
		websiteID, categoryID,
	).Error
}

// replaceWebsiteCategories swaps the full category set of a website:
// delete-all then re-insert. Not atomic; a crash between the two steps loses
// the old links. The store's own locking is the only consistency guarantee.
func replaceWebsiteCategories(websiteID uint, categoryIDs []uint) error {
	if err := db.Exec("DELETE FROM website_categories WHERE website_id = ?", websiteID).Error; err != nil {
		return &PersistenceError{Op: "clear category links", Err: err}
	}

	for _, categoryID := range categoryIDs {
		if err := insertWebsiteCategory(websiteID, categoryID); err != nil {
			return &PersistenceError{Op: "insert category link", Err: err}
		}
	}

	return nil
}

// ApproveSubmission turns a pending submission into a published, verified
// website. Order matters: the website insert happens first, then the optional
// category link, then the status flip. Each completed step pushes a
// compensating action; on a later failure the compensations run in reverse,
// best effort. This is not a transaction: a crash mid-sequence can still
// leave partial rows.
func ApproveSubmission(admin *User, sub *Submission) error {
	if admin == nil || !admin.IsAdmin() {
		return ErrUnauthorized
	}

	if sub.Status != SubmissionPending {
		return fmt.Errorf("%w: submission is already %s", ErrValidation, sub.Status)
	}

	rootDomain, err := extractRootDomain(sub.URL)
	if err != nil {
		return err
	}

	website := Website{
		DisplayName: sub.Name,
		DomainName:  rootDomain,
		Description: sub.Description,
		IsVerified:  true,
	}

	var compensations []func()

	if err := db.Create(&website).Error; err != nil {
		return &PersistenceError{Op: "create website", Err: err}
	}
	compensations = append(compensations, func() {
		if err := db.Unscoped().Delete(&Website{}, website.ID).Error; err != nil {
			// Irrecoverable without operator help: the website row is now
			// orphaned while the submission still reads pending.
			log.Printf("ERROR: compensation failed, orphaned website %d: %v", website.ID, err)
		}
	})

	if sub.SuggestedCategoryID != nil {
		if err := insertWebsiteCategory(website.ID, *sub.SuggestedCategoryID); err != nil {
			runCompensations(compensations)
			return &PersistenceError{Op: "link category", Err: err}
		}
	}

	if err := db.Model(&Submission{}).Where("id = ?", sub.ID).Update("status", SubmissionApproved).Error; err != nil {
		// The website is already live but the submission still reads pending.
		// Known gap, not auto-corrected; log distinctly and surface the error.
		log.Printf("ERROR: website %d published but submission %d not marked approved: %v", website.ID, sub.ID, err)
		return &PersistenceError{Op: "mark approved", Err: err}
	}

	listingCache.InvalidateListings()
	listingCache.InvalidateQueue()

	return nil
}

func runCompensations(compensations []func()) {
	for i := len(compensations) - 1; i >= 0; i-- {
		compensations[i]()
	}
}

// RejectSubmission flips a pending submission to rejected. Nothing else is
// mutated, so there is nothing to compensate.
func RejectSubmission(admin *User, sub *Submission) error {
	if admin == nil || !admin.IsAdmin() {
		return ErrUnauthorized
	}

	if sub.Status != SubmissionPending {
		return fmt.Errorf("%w: submission is already %s", ErrValidation, sub.Status)
	}

	if err := db.Model(&Submission{}).Where("id = ?", sub.ID).Update("status", SubmissionRejected).Error; err != nil {
		return &PersistenceError{Op: "mark rejected", Err: err}
	}

	listingCache.InvalidateListings()
	listingCache.InvalidateQueue()

	return nil
}
