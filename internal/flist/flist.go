// Package flist talks to the site's JSON API: ticket login plus the
// bookmark and friend-request endpoints. Tickets are short-lived and
// cached; chat authentication pulls them from here.
package flist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the production JSON API root.
	DefaultBaseURL = "https://www.f-list.net/json/"
	// DefaultTicketTTL refreshes tickets ahead of their 30 minute server
	// lifetime.
	DefaultTicketTTL = 25 * time.Minute
	// DefaultUserAgent identifies this client to the site; the API blocks
	// anonymous agents.
	DefaultUserAgent = "Snowchat/0.4.0"

	// maxResponseBytes caps API responses during decode.
	maxResponseBytes = 4 << 20

	requestTimeout = 30 * time.Second
)

// APIError is a rejection reported by the site in an otherwise valid
// response body.
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// Friend is one friendship pairing between an own character and a remote
// one.
type Friend struct {
	Source string `json:"source_name"`
	Dest   string `json:"dest_name"`
}

// FriendRequest is one pending incoming or outgoing request.
type FriendRequest struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// Client authenticates an account against the site API and keeps its
// ticket fresh. Safe for concurrent use.
type Client struct {
	log       *zerolog.Logger
	httpc     *http.Client
	base      string
	account   string
	password  string
	ttl       time.Duration
	userAgent string

	mu               sync.Mutex
	ticket           string
	fetchedAt        time.Time
	defaultCharacter string
	characters       []string
	friends          []Friend
	bookmarks        []string
}

// Options tune the client; zero values select production defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	TicketTTL  time.Duration
	UserAgent  string
}

// New builds a client for one account. No network traffic happens until
// the first Ticket call.
func New(logger *zerolog.Logger, account, password string, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: requestTimeout}
	}
	ttl := opts.TicketTTL
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{
		log:       logger,
		httpc:     httpc,
		base:      base,
		account:   account,
		password:  password,
		ttl:       ttl,
		userAgent: ua,
	}
}

type ticketResponse struct {
	Ticket           string   `json:"ticket"`
	Error            string   `json:"error"`
	DefaultCharacter string   `json:"default_character"`
	Characters       []string `json:"characters"`
	Friends          []Friend `json:"friends"`
	Bookmarks        []struct {
		Name string `json:"name"`
	} `json:"bookmarks"`
}

// Ticket returns a ticket that is valid right now, logging in or
// refreshing as needed.
func (c *Client) Ticket(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ticket != "" && time.Since(c.fetchedAt) < c.ttl {
		return c.ticket, nil
	}
	if err := c.refreshLocked(ctx); err != nil {
		return "", err
	}
	return c.ticket, nil
}

// Invalidate discards the cached ticket so the next use fetches a new one.
// Called when the chat server rejects identification.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticket = ""
}

func (c *Client) refreshLocked(ctx context.Context) error {
	form := url.Values{
		"account":       {c.account},
		"password":      {c.password},
		"no_characters": {"false"},
		"no_friends":    {"false"},
		"no_bookmarks":  {"false"},
	}

	var resp ticketResponse
	if err := c.post(ctx, "getApiTicket.php", form, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return &APIError{Endpoint: "getApiTicket.php", Message: resp.Error}
	}
	if resp.Ticket == "" {
		return &APIError{Endpoint: "getApiTicket.php", Message: "empty ticket"}
	}

	c.ticket = resp.Ticket
	c.fetchedAt = time.Now()
	c.defaultCharacter = resp.DefaultCharacter
	c.characters = resp.Characters
	c.friends = resp.Friends
	c.bookmarks = c.bookmarks[:0]
	for _, b := range resp.Bookmarks {
		c.bookmarks = append(c.bookmarks, b.Name)
	}
	c.log.Debug().Int("characters", len(c.characters)).Msg("api ticket refreshed")
	return nil
}

// DefaultCharacter is the account's configured default, known after the
// first successful Ticket call.
func (c *Client) DefaultCharacter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultCharacter
}

// Characters lists the account's characters, known after the first
// successful Ticket call.
func (c *Client) Characters() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.characters...)
}

// Friends lists friendship pairings from the last ticket refresh.
func (c *Client) Friends() []Friend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Friend(nil), c.friends...)
}

// Bookmarks lists bookmarked characters from the last ticket refresh.
func (c *Client) Bookmarks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.bookmarks...)
}

// AddBookmark bookmarks a character on the account.
func (c *Client) AddBookmark(ctx context.Context, name string) error {
	return c.authedPost(ctx, "bookmark-add.php", url.Values{"name": {name}}, &struct {
		Error string `json:"error"`
	}{})
}

// RemoveBookmark removes a character bookmark.
func (c *Client) RemoveBookmark(ctx context.Context, name string) error {
	return c.authedPost(ctx, "bookmark-remove.php", url.Values{"name": {name}}, &struct {
		Error string `json:"error"`
	}{})
}

// ListBookmarks fetches the current bookmark list.
func (c *Client) ListBookmarks(ctx context.Context) ([]string, error) {
	var resp struct {
		Error      string   `json:"error"`
		Characters []string `json:"characters"`
	}
	if err := c.authedPost(ctx, "bookmark-list.php", url.Values{}, &resp); err != nil {
		return nil, err
	}
	return resp.Characters, nil
}

// SendFriendRequest asks for friendship between an own character and a
// remote one.
func (c *Client) SendFriendRequest(ctx context.Context, from, to string) error {
	form := url.Values{"source_name": {from}, "dest_name": {to}}
	return c.authedPost(ctx, "request-send.php", form, &struct {
		Error string `json:"error"`
	}{})
}

// AcceptFriendRequest accepts a pending request by id.
func (c *Client) AcceptFriendRequest(ctx context.Context, id int) error {
	return c.requestAction(ctx, "request-accept.php", id)
}

// DenyFriendRequest denies a pending request by id.
func (c *Client) DenyFriendRequest(ctx context.Context, id int) error {
	return c.requestAction(ctx, "request-deny.php", id)
}

// CancelFriendRequest cancels an own outgoing request by id.
func (c *Client) CancelFriendRequest(ctx context.Context, id int) error {
	return c.requestAction(ctx, "request-cancel.php", id)
}

// PendingFriendRequests lists requests awaiting an answer.
func (c *Client) PendingFriendRequests(ctx context.Context) ([]FriendRequest, error) {
	var resp struct {
		Error    string          `json:"error"`
		Requests []FriendRequest `json:"requests"`
	}
	if err := c.authedPost(ctx, "request-list.php", url.Values{}, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

func (c *Client) requestAction(ctx context.Context, endpoint string, id int) error {
	form := url.Values{"request_id": {strconv.Itoa(id)}}
	return c.authedPost(ctx, endpoint, form, &struct {
		Error string `json:"error"`
	}{})
}

// authedPost runs an endpoint that wants account+ticket credentials,
// retrying once with a fresh ticket when the old one is rejected.
func (c *Client) authedPost(ctx context.Context, endpoint string, form url.Values, out any) error {
	ticket, err := c.Ticket(ctx)
	if err != nil {
		return err
	}

	err = c.doAuthed(ctx, endpoint, form, ticket, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "ticket") {
		c.Invalidate()
		ticket, terr := c.Ticket(ctx)
		if terr != nil {
			return terr
		}
		return c.doAuthed(ctx, endpoint, form, ticket, out)
	}
	return err
}

func (c *Client) doAuthed(ctx context.Context, endpoint string, form url.Values, ticket string, out any) error {
	authed := url.Values{}
	for k, v := range form {
		authed[k] = v
	}
	authed.Set("account", c.account)
	authed.Set("ticket", ticket)

	if err := c.post(ctx, endpoint, authed, out); err != nil {
		return err
	}
	if msg := errorField(out); msg != "" {
		return &APIError{Endpoint: endpoint, Message: msg}
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// errorField pulls the conventional "error" field out of a response
// struct via a second marshal round; every site endpoint reports failures
// that way.
func errorField(out any) string {
	raw, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Error
}
