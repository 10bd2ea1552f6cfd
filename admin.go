package main

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"netsira/constants"

	"github.com/go-chi/chi/v5"
)

func renderAdminTemplate(w http.ResponseWriter, r *http.Request, tmpl string, data interface{}) {
	templateData := struct {
		CurrentUser *User
		Error       string
		Message     string
		Data        any
	}{
		CurrentUser: getSignedInUserOrNil(r),
		Error:       r.URL.Query().Get("error"),
		Message:     r.URL.Query().Get("message"),
		Data:        data,
	}

	templatesDir := "templates/admin"

	templates, err := template.ParseFiles(
		filepath.Join(templatesDir, tmpl+".html"),
		filepath.Join(templatesDir, "layout.html"),
	)
	if err != nil {
		log.Printf("Error parsing admin templates: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	err = templates.ExecuteTemplate(w, tmpl+".html", templateData)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// pendingSubmissionCount serves the moderation queue size, cached until the
// next submission or moderation transition.
func pendingSubmissionCount() int64 {
	if count, ok := listingCache.GetPendingCount(); ok {
		return count
	}

	var count int64
	db.Model(&Submission{}).Where("status = ?", SubmissionPending).Count(&count)
	listingCache.SetPendingCount(count)

	return count
}

func AdminDashboard(w http.ResponseWriter, r *http.Request) {
	var websiteCount, reviewCount, userCount int64
	db.Model(&Website{}).Count(&websiteCount)
	db.Model(&Review{}).Count(&reviewCount)
	db.Model(&User{}).Count(&userCount)

	renderAdminTemplate(w, r, "dashboard", struct {
		WebsiteCount      int64
		ReviewCount       int64
		UserCount         int64
		PendingSubmission int64
	}{
		WebsiteCount:      websiteCount,
		ReviewCount:       reviewCount,
		UserCount:         userCount,
		PendingSubmission: pendingSubmissionCount(),
	})
}

// --- Websites ---

func AdminWebsiteList(w http.ResponseWriter, r *http.Request) {
	window := ParsePageWindow(r, constants.ITEMS_PER_PAGE)
	search := strings.TrimSpace(r.URL.Query().Get("query"))
	categoryFilter := r.URL.Query().Get("category")

	query := db.Model(&Website{})
	if search != "" {
		query = query.Where("display_name LIKE ?", "%"+search+"%")
	}
	if categoryFilter != "" {
		query = query.
			Joins("INNER JOIN website_categories wc ON wc.website_id = websites.id").
			Where("wc.category_id = ?", categoryFilter)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		http.Error(w, "Error counting websites", http.StatusInternalServerError)
		return
	}

	var websites []Website
	if err := query.Preload("Categories").
		Order("websites.id desc").
		Offset(window.Offset()).
		Limit(window.PageSize).
		Find(&websites).Error; err != nil {
		http.Error(w, "Error fetching websites", http.StatusInternalServerError)
		return
	}

	var categories []Category
	db.Order("name").Find(&categories)

	renderAdminTemplate(w, r, "websites", struct {
		Websites       []Website
		AllCategories  []Category
		TotalCount     int64
		Page           int
		PrevPage       int
		NextPage       int
		HasNextPage    bool
		HasPrevPage    bool
		SearchQuery    string
		CategoryFilter string
	}{
		Websites:       websites,
		AllCategories:  categories,
		TotalCount:     total,
		Page:           window.Page,
		PrevPage:       window.Page - 1,
		NextPage:       window.Page + 1,
		HasNextPage:    window.HasNextByCount(total),
		HasPrevPage:    window.HasPrev(),
		SearchQuery:    search,
		CategoryFilter: categoryFilter,
	})
}

func AdminAddWebsite(w http.ResponseWriter, r *http.Request) {
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	domainName := strings.TrimSpace(r.FormValue("domain_name"))
	description := strings.TrimSpace(r.FormValue("description"))

	if displayName == "" || domainName == "" {
		redirectWithError(w, r, "/admin/websites", "Display Name and Domain Name are required.")
		return
	}

	// Direct admin inserts start unverified.
	website := Website{
		DisplayName: displayName,
		DomainName:  domainName,
		Description: description,
		IsVerified:  false,
	}
	if err := db.Create(&website).Error; err != nil {
		if IsUniqueViolation(err) {
			redirectWithError(w, r, "/admin/websites", "A website with this domain already exists.")
			return
		}
		redirectWithError(w, r, "/admin/websites", "Error adding website.")
		return
	}

	listingCache.InvalidateListings()
	http.Redirect(w, r, "/admin/websites", http.StatusSeeOther)
}

func AdminEditWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")

	var website Website
	if err := db.Preload("Categories").First(&website, websiteID).Error; err != nil {
		http.Error(w, "Website not found", http.StatusNotFound)
		return
	}

	var categories []Category
	db.Order("name").Find(&categories)

	assigned := make(map[uint]bool, len(website.Categories))
	for _, category := range website.Categories {
		assigned[category.ID] = true
	}

	renderAdminTemplate(w, r, "website_edit", struct {
		Website       Website
		AllCategories []Category
		Assigned      map[uint]bool
	}{
		Website:       website,
		AllCategories: categories,
		Assigned:      assigned,
	})
}

func AdminUpdateWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")

	displayName := strings.TrimSpace(r.FormValue("display_name"))
	domainName := strings.TrimSpace(r.FormValue("domain_name"))
	description := strings.TrimSpace(r.FormValue("description"))

	if displayName == "" || domainName == "" {
		redirectWithError(w, r, "/admin/websites/"+websiteID+"/edit", "Display Name and Domain Name are required.")
		return
	}

	var website Website
	if err := db.First(&website, websiteID).Error; err != nil {
		http.Error(w, "Website not found", http.StatusNotFound)
		return
	}

	website.DisplayName = displayName
	website.DomainName = domainName
	website.Description = description
	if err := db.Save(&website).Error; err != nil {
		redirectWithError(w, r, "/admin/websites/"+websiteID+"/edit", "Error updating website.")
		return
	}

	listingCache.InvalidateWebsite(website.ID)
	listingCache.InvalidateListings()
	http.Redirect(w, r, "/admin/websites", http.StatusSeeOther)
}

func AdminToggleVerify(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")

	var website Website
	if err := db.First(&website, websiteID).Error; err != nil {
		http.Error(w, "Website not found", http.StatusNotFound)
		return
	}

	if err := db.Model(&website).Update("is_verified", !website.IsVerified).Error; err != nil {
		redirectWithError(w, r, "/admin/websites", "Error toggling verification.")
		return
	}

	listingCache.InvalidateWebsite(website.ID)
	listingCache.InvalidateListings()
	http.Redirect(w, r, "/admin/websites", http.StatusSeeOther)
}

func AdminDeleteWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")

	var website Website
	if err := db.Delete(&website, websiteID).Error; err != nil {
		redirectWithError(w, r, "/admin/websites", "Error deleting website.")
		return
	}

	listingCache.InvalidateListings()
	http.Redirect(w, r, "/admin/websites", http.StatusSeeOther)
}

func AdminUpdateWebsiteCategories(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")

	var website Website
	if err := db.First(&website, websiteID).Error; err != nil {
		http.Error(w, "Website not found", http.StatusNotFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, "/admin/websites", "Invalid form data.")
		return
	}

	var categoryIDs []uint
	for _, raw := range r.PostForm["category_ids"] {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		categoryIDs = append(categoryIDs, uint(id))
	}

	if err := replaceWebsiteCategories(website.ID, categoryIDs); err != nil {
		redirectWithError(w, r, "/admin/websites", "Error updating website categories.")
		return
	}

	listingCache.InvalidateListings()
	http.Redirect(w, r, "/admin/websites", http.StatusSeeOther)
}

// --- Categories ---

func AdminCategoryList(w http.ResponseWriter, r *http.Request) {
	var categories []Category
	if err := db.Order("name").Find(&categories).Error; err != nil {
		http.Error(w, "Error fetching categories", http.StatusInternalServerError)
		return
	}

	renderAdminTemplate(w, r, "categories", categories)
}

func AdminAddCategory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		redirectWithError(w, r, "/admin/categories", "Category name is required.")
		return
	}

	if err := db.Create(&Category{Name: name}).Error; err != nil {
		if IsUniqueViolation(err) {
			redirectWithError(w, r, "/admin/categories", "A category with this name already exists.")
			return
		}
		redirectWithError(w, r, "/admin/categories", "Error adding category.")
		return
	}

	listingCache.InvalidateListings()
	http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)
}

func AdminUpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		redirectWithError(w, r, "/admin/categories", "Category name is required.")
		return
	}

	var category Category
	if err := db.First(&category, categoryID).Error; err != nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	category.Name = name
	if err := db.Save(&category).Error; err != nil {
		if IsUniqueViolation(err) {
			redirectWithError(w, r, "/admin/categories", "A category with this name already exists.")
			return
		}
		redirectWithError(w, r, "/admin/categories", "Error updating category.")
		return
	}

	listingCache.InvalidateListings()
	http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)
}

func AdminDeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	var category Category
	if err := db.Delete(&category, categoryID).Error; err != nil {
		redirectWithError(w, r, "/admin/categories", "Error deleting category.")
		return
	}

	listingCache.InvalidateListings()
	http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)
}

// --- Submissions ---

func AdminSubmissionList(w http.ResponseWriter, r *http.Request) {
	var submissions []Submission
	if err := db.Preload("SubmittedBy").Preload("SuggestedCategory").
		Where("status = ?", SubmissionPending).
		Order("created_at asc").
		Find(&submissions).Error; err != nil {
		http.Error(w, "Error fetching submissions", http.StatusInternalServerError)
		return
	}

	renderAdminTemplate(w, r, "submissions", submissions)
}

func AdminApproveSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")

	var submission Submission
	if err := db.First(&submission, submissionID).Error; err != nil {
		http.Error(w, "Submission not found", http.StatusNotFound)
		return
	}

	if err := ApproveSubmission(getSignedInUserOrNil(r), &submission); err != nil {
		redirectWithError(w, r, "/admin/submissions", moderationFailureMessage(err))
		return
	}

	http.Redirect(w, r, "/admin/submissions?message="+url.QueryEscape(
		`Website "`+submission.Name+`" has been approved and published.`), http.StatusSeeOther)
}

func AdminRejectSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")

	var submission Submission
	if err := db.First(&submission, submissionID).Error; err != nil {
		http.Error(w, "Submission not found", http.StatusNotFound)
		return
	}

	if err := RejectSubmission(getSignedInUserOrNil(r), &submission); err != nil {
		redirectWithError(w, r, "/admin/submissions", moderationFailureMessage(err))
		return
	}

	http.Redirect(w, r, "/admin/submissions?message="+url.QueryEscape(
		"Submission has been rejected."), http.StatusSeeOther)
}

// --- Users ---

func AdminUserList(w http.ResponseWriter, r *http.Request) {
	window := ParsePageWindow(r, constants.ITEMS_PER_PAGE)

	var users []User
	if err := db.Order("id desc").
		Offset(window.Offset()).
		Limit(window.PageSize).
		Find(&users).Error; err != nil {
		http.Error(w, "Error fetching users", http.StatusInternalServerError)
		return
	}

	renderAdminTemplate(w, r, "users", struct {
		Users       []User
		Page        int
		PrevPage    int
		NextPage    int
		HasNextPage bool
		HasPrevPage bool
	}{
		Users:    users,
		Page:     window.Page,
		PrevPage: window.Page - 1,
		NextPage: window.Page + 1,
		// Inferred from a full page rather than an exact count; an exactly
		// full final page shows a next link onto an empty page.
		HasNextPage: window.HasNextByFill(len(users)),
		HasPrevPage: window.HasPrev(),
	})
}

func AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	admin := getSignedInUserOrNil(r)
	if strconv.FormatUint(uint64(admin.ID), 10) == userID {
		redirectWithError(w, r, "/admin/users", "You cannot delete your own account.")
		return
	}

	var user User
	if err := db.Delete(&user, userID).Error; err != nil {
		redirectWithError(w, r, "/admin/users", "Error deleting user.")
		return
	}

	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func AdminUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	role := r.FormValue("role")
	if role != RoleAdmin && role != RoleUser {
		redirectWithError(w, r, "/admin/users", "Unknown role.")
		return
	}

	admin := getSignedInUserOrNil(r)
	if strconv.FormatUint(uint64(admin.ID), 10) == userID {
		redirectWithError(w, r, "/admin/users", "You cannot change your own role.")
		return
	}

	if err := db.Model(&User{}).Where("id = ?", userID).Update("role", role).Error; err != nil {
		redirectWithError(w, r, "/admin/users", "Error updating user role.")
		return
	}

	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

// --- Inbox ---

func AdminInbox(w http.ResponseWriter, r *http.Request) {
	messages, err := inbox.GetAllMessages()

	var loadError string
	if err != nil {
		log.Printf("Error fetching inbox: %v", err)
		loadError = "Could not reach the messaging service. Try again shortly."
	}

	renderAdminTemplate(w, r, "inbox", struct {
		Messages  []ContactMessage
		LoadError string
	}{Messages: messages, LoadError: loadError})
}

func AdminInboxMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	message, err := inbox.GetMessageByID(messageID)
	if err != nil {
		log.Printf("Error fetching message %s: %v", messageID, err)
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	renderAdminTemplate(w, r, "inbox_message", message)
}

func AdminSendReply(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	reply := strings.TrimSpace(r.FormValue("reply"))
	if reply == "" {
		redirectWithError(w, r, "/admin/inbox/"+messageID, "Reply text is required.")
		return
	}

	message, err := inbox.GetMessageByID(messageID)
	if err != nil {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	if err := inbox.SendReply(message, reply); err != nil {
		log.Printf("Failed to send reply via webhook: %v", err)
		redirectWithError(w, r, "/admin/inbox/"+messageID, "Could not send reply.")
		return
	}

	http.Redirect(w, r, "/admin/inbox", http.StatusSeeOther)
}

// moderationFailureMessage maps workflow errors to the short inline messages
// shown next to the queue.
func moderationFailureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized action."
	case errors.Is(err, ErrInvalidInput):
		return "The submitted URL is invalid."
	case errors.Is(err, ErrValidation):
		return "This submission has already been moderated."
	default:
		return "Failed to moderate the submission. The domain may already exist."
	}
}
