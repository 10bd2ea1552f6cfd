package main

import (
	"encoding/json"
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

func renderTemplate(w http.ResponseWriter, r *http.Request, tmpl string, data interface{}) {
	query := r.URL.Query()
	templateData := struct {
		CurrentUser *User
		Error       string
		Message     string
		Success     bool
		Data        any
	}{
		CurrentUser: getSignedInUserOrNil(r),
		Error:       query.Get("error"),
		Message:     query.Get("message"),
		Success:     query.Get("success") != "",
		Data:        data,
	}

	templatesDir := "templates"

	templates, err := template.ParseFiles(
		filepath.Join(templatesDir, tmpl+".html"),
		filepath.Join(templatesDir, "layout.html"),
	)
	if err != nil {
		log.Printf("Error parsing templates: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	err = templates.ExecuteTemplate(w, tmpl+".html", templateData)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// redirectWithError sends the visitor back to a form with a short inline
// message in the query string.
func redirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	http.Redirect(w, r, path+separator+"error="+url.QueryEscape(message), http.StatusSeeOther)
}

// slugifyCategory turns "Developer Tools" into "developer-tools" for URLs.
func slugifyCategory(name string) string {
	return url.PathEscape(strings.ReplaceAll(strings.ToLower(name), " ", "-"))
}

// formatCategoryName reverses slugifyCategory: "developer-tools" becomes
// "Developer Tools".
func formatCategoryName(slug string) string {
	decoded, err := url.PathUnescape(slug)
	if err != nil {
		decoded = slug
	}

	words := strings.Split(strings.ReplaceAll(decoded, "-", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}

	return strings.Join(words, " ")
}

// WebsiteListing pairs a website with its aggregated ratings for list views.
type WebsiteListing struct {
	Website Website
	Summary RatingSummary
}

// HomeSection is one category block on the home page.
type HomeSection struct {
	Category Category
	Slug     string
	Websites []WebsiteListing
}

// websiteSummary returns the aggregated ratings for a website, served from
// cache when fresh.
func websiteSummary(websiteID uint) RatingSummary {
	if summary, ok := listingCache.GetSummary(websiteID); ok {
		return summary
	}

	var reviews []Review
	db.Where("website_id = ?", websiteID).Find(&reviews)
	summary := SummarizeRatings(reviews)
	listingCache.SetSummary(websiteID, summary)

	return summary
}

func websiteListings(sites []Website) []WebsiteListing {
	listings := make([]WebsiteListing, 0, len(sites))
	for _, site := range sites {
		listings = append(listings, WebsiteListing{Website: site, Summary: websiteSummary(site.ID)})
	}
	return listings
}

func HomePage(w http.ResponseWriter, r *http.Request) {
	sections, ok := listingCache.GetHome()
	if !ok {
		var categories []Category
		if err := db.Order("name").Find(&categories).Error; err != nil {
			http.Error(w, "Error fetching categories", http.StatusInternalServerError)
			return
		}

		for _, category := range categories {
			var sites []Website
			result := db.
				Joins("INNER JOIN website_categories wc ON wc.website_id = websites.id").
				Where("wc.category_id = ?", category.ID).
				Limit(constants.HOME_SITES_PER_CATEGORY).
				Find(&sites)
			if result.Error != nil || len(sites) == 0 {
				continue
			}

			sections = append(sections, HomeSection{
				Category: category,
				Slug:     slugifyCategory(category.Name),
				Websites: websiteListings(sites),
			})
		}

		listingCache.SetHome(sections)
	}

	renderTemplate(w, r, "home", sections)
}

func SearchPage(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var listings []WebsiteListing
	if query != "" {
		var sites []Website
		result := db.Preload("Categories").
			Where("display_name LIKE ?", "%"+query+"%").
			Find(&sites)
		if result.Error != nil {
			http.Error(w, "Search error", http.StatusInternalServerError)
			return
		}
		listings = websiteListings(sites)
	}

	renderTemplate(w, r, "search", struct {
		Query    string
		Websites []WebsiteListing
	}{Query: query, Websites: listings})
}

func CategoryIndexPage(w http.ResponseWriter, r *http.Request) {
	var categories []Category
	if err := db.Order("name").Find(&categories).Error; err != nil {
		http.Error(w, "Error fetching categories", http.StatusInternalServerError)
		return
	}

	type categoryLink struct {
		Category Category
		Slug     string
	}
	links := make([]categoryLink, 0, len(categories))
	for _, category := range categories {
		links = append(links, categoryLink{Category: category, Slug: slugifyCategory(category.Name)})
	}

	renderTemplate(w, r, "categories", links)
}

func CategoryPage(w http.ResponseWriter, r *http.Request) {
	categoryName := formatCategoryName(chi.URLParam(r, "categorySlug"))

	var category Category
	if err := db.Where("name = ?", categoryName).First(&category).Error; err != nil {
		http.NotFound(w, r)
		return
	}

	var sites []Website
	result := db.
		Joins("INNER JOIN website_categories wc ON wc.website_id = websites.id").
		Where("wc.category_id = ?", category.ID).
		Find(&sites)
	if result.Error != nil {
		http.Error(w, "Error fetching websites", http.StatusInternalServerError)
		return
	}

	renderTemplate(w, r, "category", struct {
		Category Category
		Websites []WebsiteListing
	}{Category: category, Websites: websiteListings(sites)})
}

func WebsitePage(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	var website Website
	if err := db.Preload("Categories").Where("domain_name = ?", domain).First(&website).Error; err != nil {
		http.NotFound(w, r)
		return
	}

	var reviews []Review
	if err := db.Preload("User").
		Where("website_id = ?", website.ID).
		Order("created_at desc").
		Find(&reviews).Error; err != nil {
		http.Error(w, "Error fetching reviews", http.StatusInternalServerError)
		return
	}

	user := getSignedInUserOrNil(r)
	var userReview *Review
	otherReviews := make([]Review, 0, len(reviews))
	for i := range reviews {
		if user != nil && reviews[i].UserID == user.ID {
			userReview = &reviews[i]
			continue
		}
		otherReviews = append(otherReviews, reviews[i])
	}

	renderTemplate(w, r, "site", struct {
		Website      Website
		Summary      RatingSummary
		UserReview   *Review
		OtherReviews []Review
	}{
		Website:      website,
		Summary:      websiteSummary(website.ID),
		UserReview:   userReview,
		OtherReviews: otherReviews,
	})
}

func parseRating(r *http.Request, field string) int {
	value, err := strconv.Atoi(r.FormValue(field))
	if err != nil || value < 0 {
		return 0
	}
	if value > constants.MAX_RATING {
		return constants.MAX_RATING
	}
	return value
}

// SubmitReview replaces the caller's review for a website: any prior row for
// the (user, website) pair is deleted before the new one is inserted. The two
// steps are not atomic; the store's row locking is the only guarantee.
func SubmitReview(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	user := getSignedInUserOrNil(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	var website Website
	if err := db.Where("domain_name = ?", domain).First(&website).Error; err != nil {
		http.NotFound(w, r)
		return
	}

	comment := r.FormValue("comment")
	if len(comment) > constants.MAX_MESSAGE_LENGTH {
		redirectWithError(w, r, "/site/"+domain, "Your comment is too long.")
		return
	}

	if err := db.Unscoped().
		Where("user_id = ? AND website_id = ?", user.ID, website.ID).
		Delete(&Review{}).Error; err != nil {
		redirectWithError(w, r, "/site/"+domain, "Could not submit review")
		return
	}

	review := Review{
		UserID:            user.ID,
		WebsiteID:         website.ID,
		Comment:           comment,
		RatingOverall:     parseRating(r, "rating_overall"),
		RatingDesign:      parseRating(r, "rating_design"),
		RatingUsability:   parseRating(r, "rating_usability"),
		RatingContent:     parseRating(r, "rating_content"),
		RatingReliability: parseRating(r, "rating_reliability"),
	}
	if err := db.Create(&review).Error; err != nil {
		redirectWithError(w, r, "/site/"+domain, "Could not submit review")
		return
	}

	listingCache.InvalidateWebsite(website.ID)
	http.Redirect(w, r, "/site/"+domain, http.StatusSeeOther)
}

func DeleteReview(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	user := getSignedInUserOrNil(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	reviewID := r.FormValue("review_id")

	var website Website
	if err := db.Where("domain_name = ?", domain).First(&website).Error; err != nil {
		http.NotFound(w, r)
		return
	}

	// Scoped to the owner so nobody can delete someone else's review.
	result := db.Where("id = ? AND user_id = ?", reviewID, user.ID).Delete(&Review{})
	if result.Error != nil {
		redirectWithError(w, r, "/site/"+domain, "Could not delete review")
		return
	}

	listingCache.InvalidateWebsite(website.ID)
	http.Redirect(w, r, "/site/"+domain, http.StatusSeeOther)
}

func SubmitWebsiteForm(w http.ResponseWriter, r *http.Request) {
	if getSignedInUserOrNil(r) == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	var categories []Category
	db.Order("name").Find(&categories)

	renderTemplate(w, r, "submit", categories)
}

func SubmitWebsite(w http.ResponseWriter, r *http.Request) {
	user := getSignedInUserOrNil(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	rawURL := strings.TrimSpace(r.FormValue("url"))
	description := strings.TrimSpace(r.FormValue("description"))
	suggestedCategory := r.FormValue("suggested_category_id")

	if name == "" || rawURL == "" || description == "" {
		redirectWithError(w, r, "/submit", "Name, URL, and Description are required.")
		return
	}
	if len(description) > constants.MAX_DESCRIPTION_LENGTH {
		redirectWithError(w, r, "/submit", "Description is too long.")
		return
	}

	if _, err := extractRootDomain(rawURL); err != nil {
		redirectWithError(w, r, "/submit", "Please provide a valid URL (e.g., https://example.com).")
		return
	}

	submission := Submission{
		SubmittedByID: user.ID,
		Name:          name,
		URL:           rawURL,
		Description:   description,
		Status:        SubmissionPending,
	}
	if suggestedCategory != "" {
		if categoryID, err := strconv.ParseUint(suggestedCategory, 10, 64); err == nil {
			id := uint(categoryID)
			submission.SuggestedCategoryID = &id
		}
	}

	if err := db.Create(&submission).Error; err != nil {
		if IsUniqueViolation(err) {
			redirectWithError(w, r, "/submit", "This website URL has already been submitted or added.")
			return
		}
		redirectWithError(w, r, "/submit", "Could not submit website. Please try again later.")
		return
	}

	listingCache.InvalidateQueue()
	http.Redirect(w, r, "/submit?success=true", http.StatusSeeOther)
}

// ProfilePage lists the signed-in user's reviews across every website, with
// per-review delete.
func ProfilePage(w http.ResponseWriter, r *http.Request) {
	user := getSignedInUserOrNil(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	var reviews []Review
	if err := db.Preload("Website").
		Where("user_id = ?", user.ID).
		Order("created_at desc").
		Find(&reviews).Error; err != nil {
		http.Error(w, "Error fetching reviews", http.StatusInternalServerError)
		return
	}

	renderTemplate(w, r, "profile", reviews)
}

func AboutPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "about", nil)
}

func TermsPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "terms", nil)
}

func PrivacyPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "privacy", nil)
}

func ContactForm(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "contact", nil)
}

func SubmitContactForm(w http.ResponseWriter, r *http.Request) {
	user := getSignedInUserOrNil(r)

	message := strings.TrimSpace(r.FormValue("message"))
	name := r.FormValue("name")
	email := r.FormValue("email")
	userID := ""
	if user != nil {
		name = user.Username
		email = user.Email
		userID = strconv.FormatUint(uint64(user.ID), 10)
	}

	if name == "" || email == "" || message == "" {
		redirectWithError(w, r, "/contact", "Please fill out all required fields.")
		return
	}
	if len(message) > constants.MAX_MESSAGE_LENGTH {
		redirectWithError(w, r, "/contact", "Your message is too long.")
		return
	}

	if _, err := inbox.AddMessage(name, email, message, userID); err != nil {
		log.Printf("Failed to store contact message: %v", err)
		redirectWithError(w, r, "/contact", "Could not send message.")
		return
	}

	http.Redirect(w, r, "/contact?success=true", http.StatusSeeOther)
}

// APISiteRatings serves the aggregate ratings for one website as JSON, for
// badges embedded on the reviewed sites themselves.
func APISiteRatings(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	var website Website
	if err := db.Where("domain_name = ?", domain).First(&website).Error; err != nil {
		http.Error(w, "Website not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"domain":  website.DomainName,
		"name":    website.DisplayName,
		"ratings": websiteSummary(website.ID),
	})
}
