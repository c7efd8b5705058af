// Command shadow_compare replays read-only requests against the legacy
// scheduler and this service, and reports response differences. Used during
// the migration cutover to verify endpoint parity before switching traffic.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target       target
	LegacyStatus int
	GoStatus     int
	StatusMatch  bool
	BodyMatch    bool
	Error        error
}

// Fields that legitimately differ between the two backends: generated ids,
// timestamps and latency metadata. Stripped before comparing bodies.
var volatileKeys = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"request_id": true,
	"meta":       true,
}

func main() {
	var (
		goBase      string
		legacyBase  string
		token       string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000", "legacy scheduler base URL")
	flag.StringVar(&token, "token", os.Getenv("SHADOW_COMPARE_TOKEN"), "bearer token sent to both backends")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var breaking, optionalDiff int

	for _, t := range targets {
		comp := compareTarget(client, goBase, legacyBase, token, t)
		printComparison(comp)
		if comp.Error != nil || !comp.StatusMatch || !comp.BodyMatch {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
	}

	fmt.Printf("breaking diffs: %d, optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, goBase, legacyBase, token string, tgt target) comparison {
	comp := comparison{Target: tgt}

	goStatus, goBody, err := perform(client, goBase, token, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("go request failed: %w", err)
		return comp
	}
	legacyStatus, legacyBody, err := perform(client, legacyBase, token, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", err)
		return comp
	}

	comp.GoStatus = goStatus
	comp.LegacyStatus = legacyStatus
	comp.StatusMatch = goStatus == legacyStatus
	comp.BodyMatch = bodiesEqual(goBody, legacyBody)
	return comp
}

func perform(client *http.Client, base, token string, tgt target) (int, []byte, error) {
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	stripVolatile(&aj)
	stripVolatile(&bj)
	return reflect.DeepEqual(aj, bj)
}

func stripVolatile(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k := range val {
			if volatileKeys[k] {
				delete(val, k)
				continue
			}
			v2 := val[k]
			stripVolatile(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			stripVolatile(&v2)
			val[i] = v2
		}
	}
}

func printComparison(comp comparison) {
	label := fmt.Sprintf("%s %s", comp.Target.Method, comp.Target.Path)
	switch {
	case comp.Error != nil:
		fmt.Printf("ERROR  %-55s %v\n", label, comp.Error)
	case comp.StatusMatch && comp.BodyMatch:
		fmt.Printf("OK     %-55s %d\n", label, comp.GoStatus)
	default:
		fmt.Printf("DIFF   %-55s go=%d legacy=%d body_match=%t\n", label, comp.GoStatus, comp.LegacyStatus, comp.BodyMatch)
	}
}
