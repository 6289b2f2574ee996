// Command docshare is a CLI client for the docshare service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"
)

// ---- config/token store ----

type tokenFile struct {
	Server      string    `json:"server"`
	Username    string    `json:"username"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "docshare")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "docshare")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (tokenFile, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return tokenFile{}, errors.New("not logged in (run: docshare login)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return tokenFile{}, err
	}
	if tf.AccessToken == "" || !time.Now().Before(tf.ExpiresAt) {
		return tokenFile{}, errors.New("session expired (run: docshare login)")
	}
	return tf, nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `docshare CLI
Usage:
  docshare [-server URL] <cmd> [args]

Commands:
  version
  login      -u <username> [-p <password>]     (saves token; prompts if -p omitted)
  whoami
  upload     -file <path>                      (ops)
  list                                         (client)
  link       -id <file_id>                     (client, prints download link)
  download   -id <file_id> [-o <dir>]          (client, link + fetch)
  fetch      -link <path|url> [-o <dir>]       (no login needed)
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands.
func main() {
	server := flag.String("server", envOr("DOCSHARE_SERVER", "http://localhost:8000"), "server base URL")
	timeout := flag.Duration("timeout", 5*time.Minute, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := runCmd(ctx, *server, cmd, args); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		fail(err)
	}
}

var errUsage = errors.New("usage")

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// authed returns a client carrying the saved bearer token. A token saved for
// another server is not reused.
func authed(server string) (*client, tokenFile, error) {
	tf, err := loadToken()
	if err != nil {
		return nil, tokenFile{}, err
	}
	if tf.Server != "" && tf.Server != server {
		return nil, tokenFile{}, fmt.Errorf("saved session is for %s (run: docshare login)", tf.Server)
	}
	c := newClient(server)
	c.token = tf.AccessToken
	return c, tf, nil
}

func runCmd(ctx context.Context, server, cmd string, args []string) error {
	switch cmd {

	case "version":
		fmt.Printf("docshare %s (%s)\n", version, buildDate)

	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *u == "" {
			return errUsage
		}
		if *p == "" {
			pw, err := readPassword()
			if err != nil {
				return err
			}
			*p = pw
		}
		tok, err := newClient(server).Login(ctx, *u, *p)
		if err != nil {
			return err
		}
		if err := saveToken(tokenFile{Server: server, Username: *u, AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt}); err != nil {
			return err
		}
		fmt.Printf("ok (session valid until %s)\n", tok.ExpiresAt.Local().Format(time.RFC1123))

	case "whoami":
		c, _, err := authed(server)
		if err != nil {
			return err
		}
		id, err := c.Me(ctx)
		if err != nil {
			return err
		}
		printJSON(id)

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ContinueOnError)
		file := fs.String("file", "", "path to .pptx/.docx/.xlsx")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			return errUsage
		}
		c, _, err := authed(server)
		if err != nil {
			return err
		}
		id, err := c.Upload(ctx, *file)
		if err != nil {
			return err
		}
		fmt.Println(id)

	case "list":
		c, _, err := authed(server)
		if err != nil {
			return err
		}
		files, err := c.List(ctx)
		if err != nil {
			return err
		}
		printJSON(files)

	case "link":
		fs := flag.NewFlagSet("link", flag.ContinueOnError)
		id := fs.String("id", "", "file id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return errUsage
		}
		c, _, err := authed(server)
		if err != nil {
			return err
		}
		g, err := c.Link(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Println(c.resolve(g.DownloadLink))

	case "download":
		fs := flag.NewFlagSet("download", flag.ContinueOnError)
		id := fs.String("id", "", "file id")
		out := fs.String("o", ".", "output directory")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return errUsage
		}
		c, _, err := authed(server)
		if err != nil {
			return err
		}
		g, err := c.Link(ctx, *id)
		if err != nil {
			return err
		}
		path, err := c.Fetch(ctx, g.DownloadLink, *out)
		if err != nil {
			return err
		}
		fmt.Println(path)

	case "fetch":
		fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
		link := fs.String("link", "", "download link")
		out := fs.String("o", ".", "output directory")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *link == "" {
			return errUsage
		}
		path, err := newClient(server).Fetch(ctx, *link, *out)
		if err != nil {
			return err
		}
		fmt.Println(path)

	default:
		return errUsage
	}
	return nil
}
