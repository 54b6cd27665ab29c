package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      struct {
		Username           string `json:"username"`
		Admin              bool   `json:"admin"`
		MustChangePassword bool   `json:"must_change_password"`
	} `json:"user"`
}

func main() {
	global := flag.NewFlagSet("comicshelf", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "titles":
		handleTitles(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "volumes":
		handleVolumes(ctx, client, *baseURL, *tokenPath, args[1:])
	case "continue":
		handleContinue(ctx, client, *baseURL, *tokenPath, args[1:])
	case "progress":
		handleProgress(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "admin":
		handleAdmin(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "feed":
		handleFeed(*baseURL, sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		username := fs.String("username", "", "username")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *username == "" || *password == "" {
			log.Fatal("username and password are required")
		}

		payload := map[string]string{"username": *username, "password": *password}
		var resp loginResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Printf("✅ logged in as %s (until %s)\n", resp.User.Username, resp.ExpiresAt)
		if resp.User.MustChangePassword {
			fmt.Println("⚠ this account still has its initial password, run: comicshelf auth passwd")
		}
	case "passwd":
		fs := flag.NewFlagSet("auth passwd", flag.ExitOnError)
		oldPW := fs.String("old", "", "current password")
		newPW := fs.String("new", "", "new password")
		_ = fs.Parse(args)

		if *oldPW == "" || *newPW == "" {
			log.Fatal("old and new passwords are required")
		}

		token := mustToken(tokenPath)
		payload := map[string]string{"old_password": *oldPW, "new_password": *newPW}
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/auth/change-password", token, payload, nil); err != nil {
			log.Fatalf("change password failed: %v", err)
		}
		// the server killed every outstanding token, ours included
		_ = clearToken(tokenPath)
		fmt.Println("✅ password changed, log in again")
	case "me":
		token := mustToken(tokenPath)
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/auth/me", token, nil, &resp); err != nil {
			log.Fatalf("me failed: %v", err)
		}
		printJSON(resp)
	case "logout":
		if token, err := readToken(tokenPath); err == nil && token != "" {
			if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/auth/logout", token, nil, nil); err != nil {
				log.Printf("server logout failed (clearing local token anyway): %v", err)
			}
		}
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	default:
		log.Fatal("usage: comicshelf auth <login|passwd|me|logout>")
	}
}

func handleTitles(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "list", "":
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/titles", token, nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("titles show", flag.ExitOnError)
		id := fs.Int64("id", 0, "title id")
		_ = fs.Parse(args)
		if *id == 0 {
			log.Fatal("title id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, fmt.Sprintf("%s/api/titles/%d", baseURL, *id), token, nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: comicshelf titles <list|show>")
	}
}

func handleVolumes(ctx context.Context, client *http.Client, baseURL, tokenPath string, args []string) {
	fs := flag.NewFlagSet("volumes", flag.ExitOnError)
	titleID := fs.Int64("title", 0, "title id")
	_ = fs.Parse(args)
	if *titleID == 0 {
		log.Fatal("title id is required")
	}

	token := mustToken(tokenPath)
	var resp map[string]any
	if err := doJSON(ctx, client, http.MethodGet, fmt.Sprintf("%s/api/titles/%d/volumes", baseURL, *titleID), token, nil, &resp); err != nil {
		log.Fatalf("volumes failed: %v", err)
	}
	printJSON(resp)
}

func handleContinue(ctx context.Context, client *http.Client, baseURL, tokenPath string, args []string) {
	fs := flag.NewFlagSet("continue", flag.ExitOnError)
	titleID := fs.Int64("title", 0, "title id (omit for the whole shelf)")
	_ = fs.Parse(args)

	token := mustToken(tokenPath)
	endpoint := baseURL + "/api/continue"
	if *titleID != 0 {
		endpoint = fmt.Sprintf("%s/api/titles/%d/continue", baseURL, *titleID)
	}

	var resp map[string]any
	if err := doJSON(ctx, client, http.MethodGet, endpoint, token, nil, &resp); err != nil {
		log.Fatalf("continue failed: %v", err)
	}
	printJSON(resp)
}

func handleProgress(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "get":
		fs := flag.NewFlagSet("progress get", flag.ExitOnError)
		titleID := fs.Int64("title", 0, "title id")
		volumeID := fs.Int64("volume", 0, "volume id")
		_ = fs.Parse(args)
		if *titleID == 0 || *volumeID == 0 {
			log.Fatal("title and volume ids are required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet,
			fmt.Sprintf("%s/api/progress/%d/%d", baseURL, *titleID, *volumeID), token, nil, &resp); err != nil {
			log.Fatalf("get failed: %v", err)
		}
		printJSON(resp)
	case "set":
		fs := flag.NewFlagSet("progress set", flag.ExitOnError)
		titleID := fs.Int64("title", 0, "title id")
		volumeID := fs.Int64("volume", 0, "volume id")
		page := fs.Int("page", -1, "zero-based page index")
		_ = fs.Parse(args)
		if *titleID == 0 || *volumeID == 0 {
			log.Fatal("title and volume ids are required")
		}
		if *page < 0 {
			log.Fatal("page index is required and must be >= 0")
		}

		payload := map[string]int{"page_index": *page}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPut,
			fmt.Sprintf("%s/api/progress/%d/%d", baseURL, *titleID, *volumeID), token, payload, &resp); err != nil {
			log.Fatalf("set failed: %v", err)
		}
		printJSON(resp)
	case "clear":
		fs := flag.NewFlagSet("progress clear", flag.ExitOnError)
		titleID := fs.Int64("title", 0, "title id")
		volumeID := fs.Int64("volume", 0, "volume id (omit to clear the whole title)")
		_ = fs.Parse(args)
		if *titleID == 0 {
			log.Fatal("title id is required")
		}

		endpoint := fmt.Sprintf("%s/api/progress/%d", baseURL, *titleID)
		if *volumeID != 0 {
			endpoint = fmt.Sprintf("%s/api/progress/%d/%d", baseURL, *titleID, *volumeID)
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodDelete, endpoint, token, nil, &resp); err != nil {
			log.Fatalf("clear failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: comicshelf progress <get|set|clear>")
	}
}

func handleAdmin(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "rescan":
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/admin/scan", token, nil, &resp); err != nil {
			log.Fatalf("rescan failed: %v", err)
		}
		printJSON(resp)
	case "status":
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/admin/scan/status", token, nil, &resp); err != nil {
			log.Fatalf("status failed: %v", err)
		}
		printJSON(resp)
	case "stats":
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/admin/stats", token, nil, &resp); err != nil {
			log.Fatalf("stats failed: %v", err)
		}
		printJSON(resp)
	case "set-root":
		fs := flag.NewFlagSet("admin set-root", flag.ExitOnError)
		path := fs.String("path", "", "library root directory")
		clear := fs.Bool("clear", false, "clear the saved root (fall back to env/default)")
		_ = fs.Parse(args)
		if *path == "" && !*clear {
			log.Fatal("either -path or -clear is required")
		}

		payload := map[string]string{"library_root": *path}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPut, baseURL+"/api/admin/settings/library-root", token, payload, &resp); err != nil {
			log.Fatalf("set-root failed: %v", err)
		}
		printJSON(resp)
	case "users":
		handleAdminUsers(ctx, client, baseURL, token, args)
	default:
		log.Fatal("usage: comicshelf admin <rescan|status|stats|set-root|users>")
	}
}

func handleAdminUsers(ctx context.Context, client *http.Client, baseURL, token string, args []string) {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}
	switch sub {
	case "list", "":
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/admin/users", token, nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "add":
		fs := flag.NewFlagSet("admin users add", flag.ExitOnError)
		username := fs.String("username", "", "username (3-30 chars)")
		password := fs.String("password", "", "password (8-72 chars)")
		isAdmin := fs.Bool("admin", false, "grant admin rights")
		_ = fs.Parse(args)
		if *username == "" || *password == "" {
			log.Fatal("username and password are required")
		}

		payload := map[string]any{"username": *username, "password": *password, "admin": *isAdmin}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/admin/users", token, payload, &resp); err != nil {
			log.Fatalf("add failed: %v", err)
		}
		printJSON(resp)
	case "rm":
		fs := flag.NewFlagSet("admin users rm", flag.ExitOnError)
		id := fs.String("id", "", "user id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("user id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodDelete, baseURL+"/api/admin/users/"+*id, token, nil, &resp); err != nil {
			log.Fatalf("rm failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: comicshelf admin users <list|add|rm>")
	}
}

func handleFeed(baseURL, sub string, args []string) {
	switch sub {
	case "subscribe":
		fs := flag.NewFlagSet("feed subscribe", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
		_ = fs.Parse(args)

		endpoint := *wsURL
		if endpoint == "" {
			var err error
			endpoint, err = websocketURL(baseURL, "/ws")
			if err != nil {
				log.Fatalf("ws url: %v", err)
			}
		}
		if err := runWebSocket(endpoint); err != nil {
			log.Fatalf("subscribe failed: %v", err)
		}
	default:
		log.Fatal("usage: comicshelf feed subscribe")
	}
}

func runWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[feed] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.comicshelf-token.json"
	}
	return filepath.Join(home, ".comicshelf", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if token == "" {
		log.Fatal("token empty, please login")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("comicshelf <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|passwd|me|logout")
	fmt.Println("  titles list|show")
	fmt.Println("  volumes -title <id>")
	fmt.Println("  continue [-title <id>]")
	fmt.Println("  progress get|set|clear")
	fmt.Println("  admin rescan|status|stats|set-root|users")
	fmt.Println("  feed subscribe")
}
