// Command generate_token walks through the one-time OAuth consent flow and
// saves the resulting token where the uploader expects it. Run it again
// whenever the refresh token is revoked.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

func main() {
	credentialsPath := flag.String("credentials", "credentials/client_secrets.json", "path to the OAuth client secrets")
	tokenPath := flag.String("token", "credentials/token.json", "where to save the token")
	flag.Parse()

	if _, err := os.Stat(*credentialsPath); os.IsNotExist(err) {
		fmt.Printf("credentials file not found: %s\n", *credentialsPath)
		fmt.Println("create OAuth 2.0 credentials (Desktop app) in the Google Cloud Console,")
		fmt.Println("download the JSON file and save it at that path")
		os.Exit(1)
	}

	b, err := os.ReadFile(*credentialsPath)
	if err != nil {
		fmt.Printf("read credentials: %v\n", err)
		os.Exit(1)
	}

	// Upload scope only: this token can publish videos but not touch
	// anything else on the channel.
	config, err := google.ConfigFromJSON(b, youtube.YoutubeUploadScope)
	if err != nil {
		fmt.Printf("parse credentials: %v\n", err)
		os.Exit(1)
	}

	authURL := config.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Println("open this URL in your browser:")
	fmt.Printf("  %s\n\n", authURL)
	fmt.Print("paste the authorization code: ")

	var authCode string
	if _, err := fmt.Scanln(&authCode); err != nil {
		fmt.Printf("read auth code: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	token, err := config.Exchange(ctx, authCode)
	if err != nil {
		fmt.Printf("exchange code: %v\n", err)
		os.Exit(1)
	}
	if token.RefreshToken == "" {
		fmt.Println("warning: no refresh token granted; uploads will stop working when this token expires")
	}

	tokenJSON, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		fmt.Printf("encode token: %v\n", err)
		os.Exit(1)
	}
	if dir := filepath.Dir(*tokenPath); dir != "." && dir != "" {
		os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(*tokenPath, tokenJSON, 0o600); err != nil {
		fmt.Printf("save token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("token saved: %s\n", *tokenPath)
	fmt.Printf("expires %s, refresh token %v\n", token.Expiry.Format("2006-01-02 15:04"), token.RefreshToken != "")
}
