// Package loadgen drives synthetic traffic against a running credential service.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
	Email       string
	Password    string
	MemberIDs   []string
}

type Result struct {
	TotalRequests int
	Failures      int
	ByClass       map[string]int
	Elapsed       time.Duration
}

func (r Result) Lines() []string {
	lines := []string{
		fmt.Sprintf("total=%d failures=%d elapsed=%s", r.TotalRequests, r.Failures, r.Elapsed.Round(time.Millisecond)),
	}
	for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "other"} {
		if n := r.ByClass[class]; n > 0 {
			lines = append(lines, fmt.Sprintf("%s=%d", class, n))
		}
	}
	return lines
}

type requestFunc func(ctx context.Context, client *http.Client, rng *rand.Rand) (*http.Request, error)

// Run issues requests at roughly cfg.RPS until cfg.Duration elapses or ctx is cancelled. The admin
// and mixed profiles log in once and reuse the session cookie.
func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg = normalizeConfig(cfg)
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Timeout: 10 * time.Second, Jar: jar}

	reqs, err := requestsFor(cfg)
	if err != nil {
		return Result{}, err
	}
	if cfg.Profile != "public" {
		if err := login(ctx, client, cfg); err != nil {
			return Result{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		mu  sync.Mutex
		res = Result{ByClass: map[string]int{}}
	)
	record := func(status int, failed bool) {
		mu.Lock()
		defer mu.Unlock()
		res.TotalRequests++
		if failed {
			res.Failures++
			res.ByClass["other"]++
			return
		}
		class := classifyStatusClass(status)
		res.ByClass[class]++
		if class == "5xx" {
			res.Failures++
		}
	}

	jobs := make(chan int64)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for seed := range jobs {
				rng := rand.New(rand.NewSource(seed))
				req, err := reqs[rng.Intn(len(reqs))](gctx, client, rng)
				if err != nil {
					return err
				}
				resp, err := client.Do(req)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					record(0, true)
					continue
				}
				_ = resp.Body.Close()
				record(resp.StatusCode, false)
			}
			return nil
		})
	}

	start := time.Now()
	g.Go(func() error {
		defer close(jobs)
		ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
		defer ticker.Stop()
		for n := int64(0); ; n++ {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
			select {
			case jobs <- cfg.Seed + n:
			case <-gctx.Done():
				return nil
			}
		}
	})
	err = g.Wait()
	res.Elapsed = time.Since(start)
	return res, err
}

func normalizeConfig(cfg Config) Config {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Profile = normalizeProfile(cfg.Profile)
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return cfg
}

func normalizeProfile(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "mixed"
	}
	return p
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func requestsFor(cfg Config) ([]requestFunc, error) {
	public := []requestFunc{
		get(cfg.BaseURL + "/health/ready"),
		func(ctx context.Context, _ *http.Client, rng *rand.Rand) (*http.Request, error) {
			id := fmt.Sprintf("unknown-%d", rng.Int63())
			if len(cfg.MemberIDs) > 0 && rng.Intn(2) == 0 {
				id = cfg.MemberIDs[rng.Intn(len(cfg.MemberIDs))]
			}
			return http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/v1/users/"+id+"/validate", nil)
		},
	}
	admin := []requestFunc{
		get(cfg.BaseURL + "/api/v1/auth/me"),
		get(cfg.BaseURL + "/api/v1/settings"),
		func(ctx context.Context, _ *http.Client, rng *rand.Rand) (*http.Request, error) {
			q := searchTerms[rng.Intn(len(searchTerms))]
			return http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/v1/users?query="+q, nil)
		},
	}
	switch cfg.Profile {
	case "public":
		return public, nil
	case "admin":
		return admin, nil
	case "mixed":
		return append(public, admin...), nil
	default:
		return nil, fmt.Errorf("unknown profile %q (want public, admin or mixed)", cfg.Profile)
	}
}

var searchTerms = []string{"juan", "perez", "maria", "312", "0001", "lopez+garcia"}

func get(url string) requestFunc {
	return func(ctx context.Context, _ *http.Client, _ *rand.Rand) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func login(ctx context.Context, client *http.Client, cfg Config) error {
	body, _ := json.Marshal(map[string]string{"email": cfg.Email, "password": cfg.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status)
	}
	return nil
}
