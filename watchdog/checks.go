package watchdog

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// HTTPHealthChecker probes a URL with a short timeout (spec §4.7 step 1:
// "HTTP GET the platform health endpoint with 5 s timeout").
type HTTPHealthChecker struct {
	URL    string
	Client *http.Client
}

func NewHTTPHealthChecker(url string) *HTTPHealthChecker {
	return &HTTPHealthChecker{URL: url, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (h *HTTPHealthChecker) Check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return false, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// DFDiskChecker shells out to `df -h /` the same way the Python watchdog
// does (spec §4.7 step 8).
type DFDiskChecker struct{}

func (DFDiskChecker) UsagePercent(ctx context.Context) (float64, error) {
	cmd := exec.CommandContext(ctx, "df", "-h", "/")
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) < 2 {
		return 0, fmt.Errorf("watchdog: unexpected df output")
	}
	fields := strings.Fields(lines[1])
	for _, f := range fields {
		if strings.HasSuffix(f, "%") {
			return strconv.ParseFloat(strings.TrimSuffix(f, "%"), 64)
		}
	}
	return 0, fmt.Errorf("watchdog: no usage percent field in df output")
}

// FindTempCleaner shells out to `find` to delete stale scratch files (spec
// §4.7 step 8: "delete /tmp/macaron_* older than 7 days").
type FindTempCleaner struct {
	Dir string
}

func NewFindTempCleaner(dir string) FindTempCleaner { return FindTempCleaner{Dir: dir} }

func (c FindTempCleaner) CleanOlderThan(ctx context.Context, pattern string, age time.Duration) (int, error) {
	days := int(age.Hours() / 24)
	cmd := exec.CommandContext(ctx, "find", c.Dir, "-name", pattern, "-mtime", fmt.Sprintf("+%d", days), "-print", "-delete")
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return 0, nil
	}
	return len(strings.Split(strings.TrimSpace(string(out)), "\n")), nil
}
