package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"

	"netsira/constants"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

const sessionCookieName = "session_token"

func generateAuthToken() (string, error) {
	const tokenLength = 32
	tokenBytes := make([]byte, tokenLength)
	_, err := rand.Read(tokenBytes)
	if err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)
	return token, nil
}

// SessionMiddleware resolves the session cookie to a user and stores it in
// the request context. Requests without a valid session pass through
// anonymously.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		var user User
		result := db.Where("session_token = ?", cookie.Value).First(&user)
		if result.Error != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), "current_user", &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getSignedInUserOrNil(r *http.Request) *User {
	user, _ := r.Context().Value("current_user").(*User)
	return user
}

// AdminOnly gates the back-office. Anonymous visitors are sent to the login
// page; signed-in non-admins get the default not-found page so the admin
// surface stays undiscoverable.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := getSignedInUserOrNil(r)
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if !user.IsAdmin() {
			http.NotFound(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
}

func SignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		if getSignedInUserOrNil(r) != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		renderTemplate(w, r, "signup", nil)
		return
	}

	username := r.FormValue("username")
	email := r.FormValue("email")
	password := r.FormValue("password")
	terms := r.FormValue("terms")

	if username == "" || email == "" || password == "" || terms != "on" {
		redirectWithError(w, r, "/signup", "Please fill out all fields and agree to the terms.")
		return
	}
	if len(password) < constants.MIN_PASSWORD_LENGTH {
		redirectWithError(w, r, "/signup", "Password must be at least 6 characters.")
		return
	}

	var existing User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		redirectWithError(w, r, "/signup", "This username is already taken.")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error creating account: "+err.Error(), http.StatusInternalServerError)
		return
	}

	newUser := User{
		Username:     username,
		Email:        email,
		PasswordHash: datatypes.JSON(passwordHash),
		Role:         RoleUser,
	}
	if err := db.Create(&newUser).Error; err != nil {
		if IsUniqueViolation(err) {
			redirectWithError(w, r, "/signup", "A user with this email address already exists.")
			return
		}
		redirectWithError(w, r, "/signup", "Could not create account.")
		return
	}

	token, err := generateAuthToken()
	if err != nil {
		http.Error(w, "Error creating account: "+err.Error(), http.StatusInternalServerError)
		return
	}
	newUser.SessionToken = token
	db.Save(&newUser)

	setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func LogIn(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		if getSignedInUserOrNil(r) != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		renderTemplate(w, r, "login", nil)
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")

	if email == "" || password == "" {
		redirectWithError(w, r, "/login", "Email and password are required.")
		return
	}

	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		redirectWithError(w, r, "/login", "Invalid email or password.")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		redirectWithError(w, r, "/login", "Invalid email or password.")
		return
	}

	token, err := generateAuthToken()
	if err != nil {
		http.Error(w, "Error signing in", http.StatusInternalServerError)
		return
	}
	user.SessionToken = token
	db.Save(&user)

	setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func LogOut(w http.ResponseWriter, r *http.Request) {
	if user := getSignedInUserOrNil(r); user != nil {
		db.Model(user).Update("session_token", "")
	}

	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		renderTemplate(w, r, "forgot_password", nil)
		return
	}

	email := r.FormValue("email")
	if email == "" {
		redirectWithError(w, r, "/forgot-password", "Please provide your email address.")
		return
	}

	// Same response whether or not the account exists, so the form can't be
	// used to probe for registered addresses.
	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err == nil {
		token := uuid.NewString()
		user.PasswordResetToken = token
		user.PasswordResetExpiry = time.Now().Add(time.Hour).Unix()
		db.Save(&user)

		if err := sendPasswordResetEmail(&user, token); err != nil {
			redirectWithError(w, r, "/forgot-password", "Could not send password reset email.")
			return
		}
	}

	http.Redirect(w, r, "/forgot-password?message="+url.QueryEscape(
		"If an account exists for this email, a password reset link has been sent."), http.StatusSeeOther)
}

func ResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		renderTemplate(w, r, "reset_password", r.URL.Query().Get("token"))
		return
	}

	token := r.FormValue("token")
	password := r.FormValue("password")

	if password == "" || len(password) < constants.MIN_PASSWORD_LENGTH {
		redirectWithError(w, r, "/reset-password?token="+url.QueryEscape(token), "Password must be at least 6 characters.")
		return
	}

	var user User
	if err := db.Where("password_reset_token = ? AND password_reset_token != ''", token).First(&user).Error; err != nil {
		redirectWithError(w, r, "/forgot-password", "Failed to update password. The link may have expired.")
		return
	}

	if user.PasswordResetExpiry < time.Now().Unix() {
		redirectWithError(w, r, "/forgot-password", "Failed to update password. The link may have expired.")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error updating password: "+err.Error(), http.StatusInternalServerError)
		return
	}

	user.PasswordHash = datatypes.JSON(passwordHash)
	user.PasswordResetToken = ""
	user.PasswordResetExpiry = 0
	user.SessionToken = ""
	if err := db.Save(&user).Error; err != nil {
		redirectWithError(w, r, "/forgot-password", "Failed to update password.")
		return
	}

	http.Redirect(w, r, "/login?message="+url.QueryEscape(
		"Your password has been reset successfully. Please log in."), http.StatusSeeOther)
}
