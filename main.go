package main

import (
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"netsira/constants"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"gorm.io/driver/sqlite"
)

var (
	db           *gorm.DB
	listingCache *ListingCache
	inbox        *InboxClient
)

func main() {
	loadConfig()
	initDatabase(viper.GetString("database.path"))

	var err error
	listingCache, err = NewListingCache(1000, 5*time.Minute)
	if err != nil {
		log.Fatalf("failed to initialize cache: %v", err)
	}

	inbox = NewInboxClient(viper.GetString("inbox.webhook_url"), viper.GetString("inbox.secret_key"))

	setupDefaultAdmin()

	r := initRouter()

	addr := viper.GetString("server.address")
	color.Green("NETSira running on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func loadConfig() {
	// .env first so local overrides are visible to viper.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.address", ":6240")
	viper.SetDefault("server.public_url", constants.PUBLIC_URL)
	viper.SetDefault("database.path", "netsira.db")
	viper.SetDefault("smtp.host", "localhost")
	viper.SetDefault("smtp.port", "587")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("WARN: no config file loaded: %v", err)
	}

	viper.SetEnvPrefix("NETSIRA")
	viper.AutomaticEnv()
}

func initDatabase(path string) {
	var err error
	db, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// Migrate the schema
	err = db.AutoMigrate(&User{}, &Category{}, &Website{}, &Review{}, &Submission{})
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
}

// setupDefaultAdmin makes sure a back-office account exists on first boot,
// using credentials from the config. No-op when unset or already present.
func setupDefaultAdmin() {
	username := viper.GetString("admin.username")
	email := viper.GetString("admin.email")
	password := viper.GetString("admin.password")
	if username == "" || email == "" || password == "" {
		return
	}

	var existing User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		if !existing.IsAdmin() {
			db.Model(&existing).Update("role", RoleAdmin)
		}
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("WARN: could not hash default admin password: %v", err)
		return
	}

	admin := User{
		Username:     username,
		Email:        email,
		PasswordHash: datatypes.JSON(passwordHash),
		Role:         RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Printf("WARN: could not create default admin: %v", err)
	}
}

func initRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(SessionMiddleware)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	r.Get("/", HomePage)
	r.Get("/search", SearchPage)
	r.Get("/categories", CategoryIndexPage)
	r.Get("/categories/{categorySlug}", CategoryPage)

	r.Route("/site/{domain}", func(r chi.Router) {
		r.Get("/", WebsitePage)
		r.With(httprate.LimitByIP(10, time.Minute)).Post("/review", SubmitReview)
		r.Post("/review/delete", DeleteReview)
	})

	r.Get("/profile", ProfilePage)
	r.Get("/about", AboutPage)
	r.Get("/legal/terms", TermsPage)
	r.Get("/legal/privacy", PrivacyPage)

	r.Get("/submit", SubmitWebsiteForm)
	r.With(httprate.LimitByIP(5, time.Minute)).Post("/submit", SubmitWebsite)

	r.Get("/contact", ContactForm)
	r.With(httprate.LimitByIP(5, time.Minute)).Post("/contact", SubmitContactForm)

	r.Get("/signup", SignUp)
	r.Post("/signup", SignUp)
	r.Get("/login", LogIn)
	r.Post("/login", LogIn)
	r.Get("/logout", LogOut)
	r.Get("/forgot-password", ForgotPassword)
	r.Post("/forgot-password", ForgotPassword)
	r.Get("/reset-password", ResetPassword)
	r.Post("/reset-password", ResetPassword)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET"},
		}))
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Get("/sites/{domain}/ratings", APISiteRatings)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminOnly)
		r.Get("/", AdminDashboard)

		r.Get("/websites", AdminWebsiteList)
		r.Post("/websites", AdminAddWebsite)
		r.Get("/websites/{websiteID}/edit", AdminEditWebsite)
		r.Post("/websites/{websiteID}/edit", AdminUpdateWebsite)
		r.Post("/websites/{websiteID}/verify", AdminToggleVerify)
		r.Post("/websites/{websiteID}/delete", AdminDeleteWebsite)
		r.Post("/websites/{websiteID}/categories", AdminUpdateWebsiteCategories)

		r.Get("/categories", AdminCategoryList)
		r.Post("/categories", AdminAddCategory)
		r.Post("/categories/{categoryID}/edit", AdminUpdateCategory)
		r.Post("/categories/{categoryID}/delete", AdminDeleteCategory)

		r.Get("/submissions", AdminSubmissionList)
		r.Post("/submissions/{submissionID}/approve", AdminApproveSubmission)
		r.Post("/submissions/{submissionID}/reject", AdminRejectSubmission)

		r.Get("/users", AdminUserList)
		r.Post("/users/{userID}/delete", AdminDeleteUser)
		r.Post("/users/{userID}/role", AdminUpdateUserRole)

		r.Get("/inbox", AdminInbox)
		r.Get("/inbox/{messageID}", AdminInboxMessage)
		r.Post("/inbox/{messageID}/reply", AdminSendReply)
	})

	return r
}
