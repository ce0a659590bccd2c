// Package update checks GitHub releases for a newer perch version.
package update

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultURL is the latest-release endpoint for perch.
const DefaultURL = "https://api.github.com/repos/five82/perch/releases/latest"

const checkTimeout = 5 * time.Second

type ghRelease struct {
	TagName string `json:"tag_name"`
}

// Checker queries a GitHub latest-release endpoint.
type Checker struct {
	URL        string
	HTTPClient *http.Client
	Current    string
}

// Check reports the latest released version when it is newer than Current.
// Any failure is treated as "no update"; the check is never fatal.
func (c Checker) Check(ctx context.Context) (string, bool) {
	current := strings.TrimPrefix(c.Current, "v")
	if current == "" || current == "dev" {
		return "", false
	}
	endpoint := c.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var release ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", false
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	if latest == "" || !newer(latest, current) {
		return "", false
	}
	return latest, true
}

// newer compares dotted numeric versions. Non-numeric parts compare as zero.
func newer(latest, current string) bool {
	a, b := strings.Split(latest, "."), strings.Split(current, ".")
	for i := 0; i < max(len(a), len(b)); i++ {
		x, y := part(a, i), part(b, i)
		if x != y {
			return x > y
		}
	}
	return false
}

func part(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	s := parts[i]
	if j := strings.IndexAny(s, "-+"); j >= 0 {
		s = s[:j]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
