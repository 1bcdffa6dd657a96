package client

import (
	"context"

	"snowchat/internal/flist"
)

// SiteAPI is the slice of the site's JSON API the engine uses for
// bookmark and friend mutations. Bookmarks and friendships live on the
// account, not the chat session, so they go over HTTPS and only land in
// the store once the site confirms them. *flist.Client implements it.
type SiteAPI interface {
	AddBookmark(ctx context.Context, name string) error
	RemoveBookmark(ctx context.Context, name string) error
	SendFriendRequest(ctx context.Context, from, to string) error
	AcceptFriendRequest(ctx context.Context, id int) error
	DenyFriendRequest(ctx context.Context, id int) error
	CancelFriendRequest(ctx context.Context, id int) error
	PendingFriendRequests(ctx context.Context) ([]flist.FriendRequest, error)
}

// Bookmark adds a character to the account's bookmarks.
func (c *Client) Bookmark(ctx context.Context, character string) error {
	if c.opts.Site == nil {
		return ErrSiteUnavailable
	}
	if character == "" {
		return ErrEmptyCharacter
	}
	if err := c.opts.Site.AddBookmark(ctx, character); err != nil {
		return err
	}
	c.store.SetBookmarked(character, true)
	return nil
}

// Unbookmark removes a character from the account's bookmarks.
func (c *Client) Unbookmark(ctx context.Context, character string) error {
	if c.opts.Site == nil {
		return ErrSiteUnavailable
	}
	if character == "" {
		return ErrEmptyCharacter
	}
	if err := c.opts.Site.RemoveBookmark(ctx, character); err != nil {
		return err
	}
	c.store.SetBookmarked(character, false)
	return nil
}

// SendFriendRequest asks another character for friendship on behalf of
// the logged-in character. The pairing shows up in the friend list only
// after the other side accepts.
func (c *Client) SendFriendRequest(ctx context.Context, character string) error {
	if c.opts.Site == nil {
		return ErrSiteUnavailable
	}
	if character == "" {
		return ErrEmptyCharacter
	}
	return c.opts.Site.SendFriendRequest(ctx, c.store.Self().Character, character)
}

// FriendRequests lists requests awaiting an answer.
func (c *Client) FriendRequests(ctx context.Context) ([]flist.FriendRequest, error) {
	if c.opts.Site == nil {
		return nil, ErrSiteUnavailable
	}
	return c.opts.Site.PendingFriendRequests(ctx)
}

// AcceptFriendRequest accepts a pending request and records the new
// friend once the site confirms.
func (c *Client) AcceptFriendRequest(ctx context.Context, req flist.FriendRequest) error {
	if c.opts.Site == nil {
		return ErrSiteUnavailable
	}
	if err := c.opts.Site.AcceptFriendRequest(ctx, req.ID); err != nil {
		return err
	}
	c.store.AddFriend(req.Source)
	return nil
}

// DenyFriendRequest turns down a pending incoming request.
func (c *Client) DenyFriendRequest(ctx context.Context, id int) error {
	if c.opts.Site == nil {
		return ErrSiteUnavailable
	}
	return c.opts.Site.DenyFriendRequest(ctx, id)
}

// CancelFriendRequest withdraws an own outgoing request.
func (c *Client) CancelFriendRequest(ctx context.Context, id int) error {
	if c.opts.Site == nil {
		return ErrSiteUnavailable
	}
	return c.opts.Site.CancelFriendRequest(ctx, id)
}
