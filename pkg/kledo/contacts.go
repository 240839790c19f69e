// kledo/contacts.go
package kledo

import (
	"context"
	"net/url"
)

// FindContactByEmail searches contacts by email and returns the first
// match, or nil when none exists
func (c *Client) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	var resp listEnvelope[Contact]
	path := pathContacts + "?search=" + url.QueryEscape(email)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Data) == 0 {
		return nil, nil
	}
	return &resp.Data.Data[0], nil
}

// CreateContact creates a new contact
func (c *Client) CreateContact(ctx context.Context, req ContactRequest) (*Contact, error) {
	var resp dataEnvelope[Contact]
	if err := c.post(ctx, pathContacts, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ListContactGroups returns all contact groups
func (c *Client) ListContactGroups(ctx context.Context) ([]ContactGroup, error) {
	var resp listEnvelope[ContactGroup]
	if err := c.get(ctx, pathContactGroups, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Data, nil
}

// CreateContactGroup creates a new contact group
func (c *Client) CreateContactGroup(ctx context.Context, name string) (*ContactGroup, error) {
	req := struct {
		Name string `json:"name"`
	}{Name: name}

	var resp dataEnvelope[ContactGroup]
	if err := c.post(ctx, pathContactGroups, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
