package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

// Options configure the TDF site client.
type Options struct {
	LoginURL     string
	OfferingsURL string
	Email        string
	Password     string

	// Timeout bounds each HTTP call. Zero means 30s.
	Timeout time.Duration

	// SearchDelay paces consecutive title searches. Zero disables pacing.
	SearchDelay time.Duration
}

// Client talks to the ticketing site over plain HTTP with a cookie-backed
// session.
type Client struct {
	log  logx.Logger
	http *http.Client

	limiter *rate.Limiter

	loginURL     string
	offeringsURL string
	email        string
	password     string
	timeout      time.Duration
}

var _ Source = (*Client)(nil)

// The site rejects obvious bot agents at the WAF.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func NewClient(opts Options, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(opts.Email) == "" || strings.TrimSpace(opts.Password) == "" {
		return nil, fmt.Errorf("scrape: credentials are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.SearchDelay > 0 {
		lim = rate.NewLimiter(rate.Every(opts.SearchDelay), 1)
	}

	return &Client{
		log:          log,
		http:         &http.Client{Jar: jar},
		limiter:      lim,
		loginURL:     opts.LoginURL,
		offeringsURL: opts.OfferingsURL,
		email:        opts.Email,
		password:     opts.Password,
		timeout:      timeout,
	}, nil
}

// Authenticate fetches the login page, discovers the credential form
// (hidden inputs included, so CSRF tokens round-trip) and submits it.
// Success is judged by the absence of error-styled elements in the
// response, the same signal a human gets.
func (c *Client) Authenticate(ctx context.Context) error {
	c.log.Debug("fetching login page", logx.String("url", c.loginURL))
	doc, err := c.getDoc(ctx, c.loginURL)
	if err != nil {
		return fmt.Errorf("login page: %w", err)
	}

	form, ok := findLoginForm(doc)
	if !ok {
		// Conventional field names as a last resort.
		form = loginForm{emailField: "Email", passwordField: "Password", hidden: url.Values{}}
	}
	if form.emailField == "" {
		form.emailField = "Email"
	}

	vals := url.Values{}
	for k, vs := range form.hidden {
		for _, v := range vs {
			vals.Add(k, v)
		}
	}
	vals.Set(form.emailField, c.email)
	vals.Set(form.passwordField, c.password)

	doc, err = c.postForm(ctx, c.resolve(c.loginURL, form.action), vals)
	if err != nil {
		return fmt.Errorf("login submit: %w", err)
	}
	if msg, found := findErrorText(doc); found {
		return fmt.Errorf("login failed: %s", msg)
	}
	c.log.Info("login successful")
	return nil
}

func (c *Client) FindTitle(ctx context.Context, name, filterDate string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	doc, err := c.getDoc(ctx, c.offeringsURL)
	if err != nil {
		return "", fmt.Errorf("offerings page: %w", err)
	}

	if filterDate != "" {
		if field, ok := findDateFilterField(doc); ok {
			filtered, err := c.getDoc(ctx, withQuery(c.offeringsURL, field, filterDate))
			if err != nil {
				return "", fmt.Errorf("offerings page (date filter): %w", err)
			}
			doc = filtered
		} else {
			c.log.Warn("could not find date filter field; searching unfiltered listing",
				logx.String("filter_date", filterDate))
		}
	}

	href, ok := findTitleURL(doc, name)
	if !ok {
		c.log.Debug("title not found in listing", logx.String("title", name))
		return "", nil
	}
	u := c.resolve(c.offeringsURL, href)
	c.log.Info("title found", logx.String("title", name), logx.String("url", u))
	return u, nil
}

func (c *Client) ListDates(ctx context.Context, pageURL string) ([]string, error) {
	doc, err := c.getDoc(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("detail page: %w", err)
	}
	dates := collectDates(doc)
	c.log.Info("dates extracted", logx.Int("count", len(dates)), logx.String("url", pageURL))
	return dates, nil
}

func (c *Client) getDoc(ctx context.Context, rawURL string) (*html.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}
	return html.Parse(resp.Body)
}

func (c *Client) postForm(ctx context.Context, rawURL string, vals url.Values) (*html.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(vals.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	// Login submits usually land on a redirect target; any 2xx body parses.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}
	return html.Parse(resp.Body)
}

func (c *Client) resolve(base, ref string) string {
	if strings.TrimSpace(ref) == "" {
		return base
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}

func withQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
