package main

import (
	"bytes"
	"log"

	"github.com/spf13/viper"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

func SendMail(recepients []string, subject, body string) error {
	from := viper.GetString("smtp.from_email")
	host := viper.GetString("smtp.host")
	port := viper.GetString("smtp.port")
	username := viper.GetString("smtp.username")
	password := viper.GetString("smtp.password")

	auth := sasl.NewLoginClient(username, password)

	var err error
	for _, recipient := range recepients {
		message := "From: " + from + "\n" +
			"To: " + recipient + "\n" +
			"Subject: " + subject + "\n\n" +
			body

		to := []string{recipient}
		msg := []byte(message)
		reader := bytes.NewReader(msg)
		err = smtp.SendMail(host+":"+port, auth, from, to, reader)
		if err != nil {
			log.Printf("WARN: Failed to send email: %v\n", err)
		}
	}

	return err
}

// sendPasswordResetEmail mails the reset link for a freshly issued token.
// Failures are logged by SendMail and surfaced; nothing is retried.
func sendPasswordResetEmail(user *User, token string) error {
	publicURL := viper.GetString("server.public_url")
	link := publicURL + "/reset-password?token=" + token

	body := "Hi " + user.Username + ",\n\n" +
		"A password reset was requested for your NETSira account.\n" +
		"If this was you, follow the link below to choose a new password:\n\n" +
		link + "\n\n" +
		"The link expires in one hour. If you didn't request this, you can ignore this email.\n"

	return SendMail([]string{user.Email}, "Reset your NETSira password", body)
}
