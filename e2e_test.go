package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testPort      = ":16240"
	testBaseURL   = "http://localhost:16240"
	testDBFile    = "test_netsira.db"
	testSecretKey = "test-secret"
)

var (
	testServer *http.Server
	fakeInbox  *fakeInboxService
)

// fakeInboxService stands in for the external messaging webhook during tests.
type fakeInboxService struct {
	mu       sync.Mutex
	secret   string
	messages map[string]ContactMessage
	server   *httptest.Server
}

func newFakeInboxService(secret string) *fakeInboxService {
	f := &fakeInboxService{
		secret:   secret,
		messages: make(map[string]ContactMessage),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeInboxService) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action    string          `json:"action"`
		SecretKey string          `json:"secretKey"`
		Params    json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	respond := func(status string, data any, message string) {
		var raw json.RawMessage
		if data != nil {
			raw, _ = json.Marshal(data)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  status,
			"data":    raw,
			"message": message,
		})
	}

	if req.SecretKey != f.secret {
		respond("error", nil, "Invalid secret key")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch req.Action {
	case "addMessage":
		var params addMessageParams
		json.Unmarshal(req.Params, &params)
		f.messages[params.MessageID] = ContactMessage{
			ID:        params.MessageID,
			Timestamp: time.Now().Format(time.RFC3339),
			Name:      params.Name,
			Email:     params.Email,
			Message:   params.Message,
			Status:    MessageReceived,
		}
		respond("success", nil, "")
	case "getAllMessages":
		all := make([]ContactMessage, 0, len(f.messages))
		for _, msg := range f.messages {
			all = append(all, msg)
		}
		respond("success", all, "")
	case "getMessageById":
		var params getMessageParams
		json.Unmarshal(req.Params, &params)
		msg, ok := f.messages[params.MessageID]
		if !ok {
			respond("error", nil, "Message not found")
			return
		}
		respond("success", msg, "")
	case "sendReply":
		var params sendReplyParams
		json.Unmarshal(req.Params, &params)
		msg, ok := f.messages[params.MessageID]
		if !ok {
			respond("error", nil, "Message not found")
			return
		}
		msg.Status = MessageReplied
		msg.Reply = params.ReplyMessage
		f.messages[params.MessageID] = msg
		respond("success", nil, "")
	default:
		respond("error", nil, "Unknown action")
	}
}

// TestMain sets up and tears down the test environment
func TestMain(m *testing.M) {
	if err := setupTestEnvironment(); err != nil {
		log.Fatalf("Failed to setup test environment: %v", err)
	}

	code := m.Run()

	teardownTestEnvironment()

	os.Exit(code)
}

func setupTestEnvironment() error {
	os.Remove(testDBFile)

	var err error
	db, err = gorm.Open(sqlite.Open("file:"+testDBFile+"?cache=shared&mode=rwc&_journal_mode=WAL"), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to test database: %w", err)
	}

	err = db.AutoMigrate(&User{}, &Category{}, &Website{}, &Review{}, &Submission{})
	if err != nil {
		return fmt.Errorf("failed to migrate test database: %w", err)
	}

	listingCache, err = NewListingCache(1000, 5*time.Minute)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	fakeInbox = newFakeInboxService(testSecretKey)
	inbox = NewInboxClient(fakeInbox.server.URL, testSecretKey)

	viper.SetDefault("server.public_url", testBaseURL)
	viper.SetDefault("smtp.host", "localhost")
	viper.SetDefault("smtp.port", "587")

	r := initRouter()
	testServer = &http.Server{
		Addr:    testPort,
		Handler: r,
	}

	go func() {
		if err := testServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Test server error: %v", err)
		}
	}()

	// Wait for server to be ready
	time.Sleep(500 * time.Millisecond)

	log.Println("Test environment setup complete")
	return nil
}

func teardownTestEnvironment() {
	if fakeInbox != nil {
		fakeInbox.server.Close()
	}

	if testServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		testServer.Shutdown(ctx)
	}

	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}

	os.Remove(testDBFile)

	log.Println("Test environment teardown complete")
}

// newTestClient returns an HTTP client with its own cookie jar, so each test
// gets an isolated session.
func newTestClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar}
}

// createTestAdmin inserts an admin with a live session and returns a client
// already carrying the session cookie.
func createTestAdmin(t *testing.T, name string) (*User, *http.Client) {
	t.Helper()

	admin := User{
		Username:     name,
		Email:        name + "@test.local",
		SessionToken: fmt.Sprintf("admintoken_%s_%d", name, time.Now().UnixNano()),
		Role:         RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}

	client := newTestClient()
	base, _ := url.Parse(testBaseURL)
	client.Jar.SetCookies(base, []*http.Cookie{{Name: "session_token", Value: admin.SessionToken}})

	return &admin, client
}

func bodyText(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}

// TestSignupSubmitApproveFlow walks the complete journey from a new account
// through submission and admin approval to a published listing.
func TestSignupSubmitApproveFlow(t *testing.T) {
	client := newTestClient()
	username := fmt.Sprintf("flowuser_%d", time.Now().Unix())

	// Step 1: Sign up
	t.Log("Step 1: Creating account")
	resp, err := client.PostForm(testBaseURL+"/signup", url.Values{
		"username": {username},
		"email":    {username + "@test.local"},
		"password": {"testpassword123"},
		"terms":    {"on"},
	})
	if err != nil {
		t.Fatalf("signup request failed: %v", err)
	}
	resp.Body.Close()

	var user User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		t.Fatalf("account was not created: %v", err)
	}
	if user.SessionToken == "" {
		t.Fatal("no session token set after signup")
	}

	// Step 2: Submit a website
	t.Log("Step 2: Submitting a website")
	resp, err = client.PostForm(testBaseURL+"/submit", url.Values{
		"name":        {"Flow Test Site"},
		"url":         {"https://www.flowtest.example.org/some/page"},
		"description": {"A site submitted by the e2e flow test."},
	})
	if err != nil {
		t.Fatalf("submit request failed: %v", err)
	}
	resp.Body.Close()

	var submission Submission
	if err := db.Where("name = ?", "Flow Test Site").First(&submission).Error; err != nil {
		t.Fatalf("submission was not created: %v", err)
	}
	if submission.Status != SubmissionPending {
		t.Fatalf("expected pending submission, got %q", submission.Status)
	}

	// Step 3: Approve it as an admin
	t.Log("Step 3: Approving as admin")
	_, adminClient := createTestAdmin(t, fmt.Sprintf("flowadmin_%d", time.Now().Unix()))

	resp, err = adminClient.PostForm(fmt.Sprintf("%s/admin/submissions/%d/approve", testBaseURL, submission.ID), nil)
	if err != nil {
		t.Fatalf("approve request failed: %v", err)
	}
	resp.Body.Close()

	var website Website
	if err := db.Where("domain_name = ?", "flowtest.example.org").First(&website).Error; err != nil {
		t.Fatalf("approved website was not published: %v", err)
	}
	if !website.IsVerified {
		t.Error("published website should be verified")
	}

	db.First(&submission, submission.ID)
	if submission.Status != SubmissionApproved {
		t.Errorf("expected approved status, got %q", submission.Status)
	}

	// Step 4: The public page serves the new listing
	t.Log("Step 4: Checking the public page")
	resp, err = client.Get(testBaseURL + "/site/flowtest.example.org")
	if err != nil {
		t.Fatalf("site page request failed: %v", err)
	}
	page := bodyText(t, resp)
	if !strings.Contains(page, "Flow Test Site") {
		t.Error("published website not shown on its public page")
	}
}

// TestReviewReplaceFlow verifies that resubmitting a review replaces the old
// one instead of stacking a second row.
func TestReviewReplaceFlow(t *testing.T) {
	website := Website{
		DisplayName: "Review Target",
		DomainName:  "reviewtarget.example.com",
		IsVerified:  true,
	}
	if err := db.Create(&website).Error; err != nil {
		t.Fatalf("failed to create website: %v", err)
	}

	client := newTestClient()
	username := fmt.Sprintf("reviewer_%d", time.Now().Unix())
	resp, err := client.PostForm(testBaseURL+"/signup", url.Values{
		"username": {username},
		"email":    {username + "@test.local"},
		"password": {"testpassword123"},
		"terms":    {"on"},
	})
	if err != nil {
		t.Fatalf("signup request failed: %v", err)
	}
	resp.Body.Close()

	post := func(overall, design string, comment string) {
		t.Helper()
		resp, err := client.PostForm(testBaseURL+"/site/"+website.DomainName+"/review", url.Values{
			"rating_overall":     {overall},
			"rating_design":      {design},
			"rating_usability":   {"3"},
			"rating_content":     {"3"},
			"rating_reliability": {"3"},
			"comment":            {comment},
		})
		if err != nil {
			t.Fatalf("review request failed: %v", err)
		}
		resp.Body.Close()
	}

	post("4", "5", "First impression.")
	post("2", "1", "Changed my mind.")

	var reviews []Review
	db.Unscoped().Where("website_id = ?", website.ID).Find(&reviews)
	var live []Review
	for _, review := range reviews {
		if !review.DeletedAt.Valid {
			live = append(live, review)
		}
	}
	if len(live) != 1 {
		t.Fatalf("expected exactly one live review, found %d", len(live))
	}
	if live[0].RatingOverall != 2 || live[0].Comment != "Changed my mind." {
		t.Errorf("review was not replaced: %+v", live[0])
	}

	// The ratings API reflects the replacement, not the original.
	resp, err = client.Get(testBaseURL + "/api/v1/sites/" + website.DomainName + "/ratings")
	if err != nil {
		t.Fatalf("ratings API request failed: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Domain  string        `json:"domain"`
		Ratings RatingSummary `json:"ratings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode ratings payload: %v", err)
	}
	if payload.Ratings.Overall != 2 {
		t.Errorf("expected overall 2 after replacement, got %v", payload.Ratings.Overall)
	}
	if payload.Ratings.Count != 1 {
		t.Errorf("expected review count 1, got %d", payload.Ratings.Count)
	}
}

// TestAdminRequiresRole checks that the back-office hides from regular users.
func TestAdminRequiresRole(t *testing.T) {
	client := newTestClient()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	// Anonymous visitors get bounced to the login page.
	resp, err := client.Get(testBaseURL + "/admin")
	if err != nil {
		t.Fatalf("admin request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("expected redirect for anonymous visitor, got %d", resp.StatusCode)
	}

	// Signed-in regular users get a 404, not a hint that the panel exists.
	username := fmt.Sprintf("plainuser_%d", time.Now().Unix())
	signupClient := newTestClient()
	resp, err = signupClient.PostForm(testBaseURL+"/signup", url.Values{
		"username": {username},
		"email":    {username + "@test.local"},
		"password": {"testpassword123"},
		"terms":    {"on"},
	})
	if err != nil {
		t.Fatalf("signup request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = signupClient.Get(testBaseURL + "/admin")
	if err != nil {
		t.Fatalf("admin request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for non-admin user, got %d", resp.StatusCode)
	}
}

// TestProfilePage verifies the signed-in reviews overview and its per-review
// delete path.
func TestProfilePage(t *testing.T) {
	website := Website{
		DisplayName: "Profile Target",
		DomainName:  "profiletarget.example.com",
		IsVerified:  true,
	}
	if err := db.Create(&website).Error; err != nil {
		t.Fatalf("failed to create website: %v", err)
	}

	client := newTestClient()
	username := fmt.Sprintf("profileuser_%d", time.Now().Unix())
	resp, err := client.PostForm(testBaseURL+"/signup", url.Values{
		"username": {username},
		"email":    {username + "@test.local"},
		"password": {"testpassword123"},
		"terms":    {"on"},
	})
	if err != nil {
		t.Fatalf("signup request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = client.PostForm(testBaseURL+"/site/"+website.DomainName+"/review", url.Values{
		"rating_overall": {"4"},
		"comment":        {"Written for the profile page."},
	})
	if err != nil {
		t.Fatalf("review request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(testBaseURL + "/profile")
	if err != nil {
		t.Fatalf("profile request failed: %v", err)
	}
	page := bodyText(t, resp)
	if !strings.Contains(page, "Profile Target") {
		t.Error("reviewed website not listed on the profile page")
	}
	if !strings.Contains(page, "Written for the profile page.") {
		t.Error("review comment not shown on the profile page")
	}

	var user User
	db.Where("username = ?", username).First(&user)
	var review Review
	if err := db.Where("user_id = ? AND website_id = ?", user.ID, website.ID).First(&review).Error; err != nil {
		t.Fatalf("review row missing: %v", err)
	}

	resp, err = client.PostForm(testBaseURL+"/site/"+website.DomainName+"/review/delete", url.Values{
		"review_id": {fmt.Sprintf("%d", review.ID)},
	})
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(testBaseURL + "/profile")
	if err != nil {
		t.Fatalf("profile request failed: %v", err)
	}
	page = bodyText(t, resp)
	if strings.Contains(page, "Written for the profile page.") {
		t.Error("deleted review still shown on the profile page")
	}

	// Anonymous visitors are sent to the login page instead.
	anon := newTestClient()
	anon.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err = anon.Get(testBaseURL + "/profile")
	if err != nil {
		t.Fatalf("anonymous profile request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("expected redirect for anonymous visitor, got %d", resp.StatusCode)
	}
}

// TestStaticPages covers the informational pages.
func TestStaticPages(t *testing.T) {
	client := newTestClient()

	pages := []struct {
		path string
		want string
	}{
		{"/about", "About NETSira"},
		{"/legal/terms", "Terms of Service"},
		{"/legal/privacy", "Privacy Policy"},
	}

	for _, page := range pages {
		resp, err := client.Get(testBaseURL + page.path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", page.path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s returned %d", page.path, resp.StatusCode)
		}
		body := bodyText(t, resp)
		if !strings.Contains(body, page.want) {
			t.Errorf("GET %s missing %q", page.path, page.want)
		}
	}
}

// TestAdminInboxUnavailable checks that a webhook outage renders as an inline
// error, not as an empty inbox.
func TestAdminInboxUnavailable(t *testing.T) {
	original := inbox
	inbox = NewInboxClient("http://127.0.0.1:9/unreachable", testSecretKey)
	defer func() { inbox = original }()

	_, adminClient := createTestAdmin(t, fmt.Sprintf("outageadmin_%d", time.Now().Unix()))

	resp, err := adminClient.Get(testBaseURL + "/admin/inbox")
	if err != nil {
		t.Fatalf("inbox request failed: %v", err)
	}
	page := bodyText(t, resp)
	if !strings.Contains(page, "Could not reach the messaging service") {
		t.Error("webhook outage not surfaced on the inbox page")
	}
	if strings.Contains(page, "The inbox is empty.") {
		t.Error("outage rendered as an empty inbox")
	}
}

// TestContactInboxFlow sends a contact message through the site and then reads
// and replies to it from the admin inbox.
func TestContactInboxFlow(t *testing.T) {
	client := newTestClient()

	resp, err := client.PostForm(testBaseURL+"/contact", url.Values{
		"name":    {"Visitor"},
		"email":   {"visitor@test.local"},
		"message": {"Hello from the contact form."},
	})
	if err != nil {
		t.Fatalf("contact request failed: %v", err)
	}
	resp.Body.Close()

	fakeInbox.mu.Lock()
	var stored ContactMessage
	for _, msg := range fakeInbox.messages {
		if msg.Message == "Hello from the contact form." {
			stored = msg
		}
	}
	fakeInbox.mu.Unlock()
	if stored.ID == "" {
		t.Fatal("message never reached the webhook")
	}
	if stored.Status != MessageReceived {
		t.Errorf("expected status %q, got %q", MessageReceived, stored.Status)
	}

	_, adminClient := createTestAdmin(t, fmt.Sprintf("inboxadmin_%d", time.Now().Unix()))

	resp, err = adminClient.Get(testBaseURL + "/admin/inbox")
	if err != nil {
		t.Fatalf("inbox request failed: %v", err)
	}
	page := bodyText(t, resp)
	if !strings.Contains(page, "Hello from the contact form.") {
		t.Error("contact message not shown in the admin inbox")
	}

	resp, err = adminClient.PostForm(testBaseURL+"/admin/inbox/"+stored.ID+"/reply", url.Values{
		"reply": {"Thanks for writing in!"},
	})
	if err != nil {
		t.Fatalf("reply request failed: %v", err)
	}
	resp.Body.Close()

	fakeInbox.mu.Lock()
	replied := fakeInbox.messages[stored.ID]
	fakeInbox.mu.Unlock()
	if replied.Status != MessageReplied {
		t.Errorf("expected status %q after reply, got %q", MessageReplied, replied.Status)
	}
	if replied.Reply != "Thanks for writing in!" {
		t.Errorf("reply text not stored: %q", replied.Reply)
	}
}
