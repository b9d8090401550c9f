// Package github looks up the branches the hosting provider protects so they
// can be added to the local protected set.
package github

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// tokenTimeout bounds the gh CLI call used as a token fallback
const tokenTimeout = 10 * time.Second

// Client reads branch protection for one repository
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewClient creates a client authenticated with token
func NewClient(ctx context.Context, token, owner, repo string) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	return &Client{gh: github.NewClient(tc), owner: owner, repo: repo}
}

// NewClientWithGitHub wraps an existing go-github client
func NewClientWithGitHub(gh *github.Client, owner, repo string) *Client {
	return &Client{gh: gh, owner: owner, repo: repo}
}

// NewClientForRemote builds a client from a remote URL, taking the token from
// GITHUB_TOKEN or the gh CLI
func NewClientForRemote(ctx context.Context, remoteURL string) (*Client, error) {
	owner, repo, err := ParseRemoteURL(remoteURL)
	if err != nil {
		return nil, err
	}
	token, err := Token(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, token, owner, repo), nil
}

// OwnerRepo returns the repository owner and name
func (c *Client) OwnerRepo() (string, string) {
	return c.owner, c.repo
}

// ProtectedBranches returns the names of all protected branches, following pagination
func (c *Client) ProtectedBranches(ctx context.Context) ([]string, error) {
	opts := &github.BranchListOptions{
		Protected:   github.Bool(true),
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var names []string
	for {
		branches, resp, err := c.gh.Repositories.ListBranches(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list protected branches of %s/%s: %w", c.owner, c.repo, err)
		}
		for _, b := range branches {
			names = append(names, b.GetName())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// Token gets a GitHub token from the environment or the gh CLI
func Token(ctx context.Context) (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get GitHub token: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", fmt.Errorf("empty GitHub token")
	}
	return token, nil
}

// ParseRemoteURL extracts owner and repository from an https, ssh or scp-style remote URL
//
//	https://github.com/owner/repo.git
//	ssh://git@github.com/owner/repo.git
//	git@github.com:owner/repo.git
func ParseRemoteURL(url string) (string, string, error) {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	url = strings.TrimSuffix(url, ".git")

	var path string
	switch {
	case strings.Contains(url, "://"):
		rest := url[strings.Index(url, "://")+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", "", fmt.Errorf("invalid remote URL %q", url)
		}
		path = rest[slash+1:]
	case strings.Contains(url, "@") && strings.Contains(url, ":"):
		path = url[strings.Index(url, ":")+1:]
	default:
		return "", "", fmt.Errorf("invalid remote URL %q", url)
	}

	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("invalid remote URL %q", url)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
