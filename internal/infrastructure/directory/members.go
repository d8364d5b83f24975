// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/internal/logging"
)

// pageSize is the $top value for membership listing. Graph caps this at 999.
const pageSize = 999

// graphMember is one directory object from a group membership listing.
type graphMember struct {
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

// graphMembersResponse is the response from the group members API.
type graphMembersResponse struct {
	Value    []graphMember `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

// Ensure that Client implements domain.DirectoryProvider
var _ domain.DirectoryProvider = (*Client)(nil)

// ListGroupMembers returns one page of group membership. The first page is
// requested with an empty cursor; Graph returns an absolute @odata.nextLink
// that is passed back verbatim as the cursor for subsequent pages.
func (c *Client) ListGroupMembers(ctx context.Context, groupID string, cursor string) (*domain.GroupMemberPage, error) {
	ctx = logging.AppendCtx(ctx, slog.String("graph_operation", "list_group_members"))

	requestURL := cursor
	if requestURL == "" {
		query := url.Values{}
		query.Set("$select", "mail,userPrincipalName,displayName")
		query.Set("$top", fmt.Sprintf("%d", pageSize))
		requestURL = fmt.Sprintf("%s/groups/%s/members?%s", c.config.BaseURL, url.PathEscape(groupID), query.Encode())
	}

	resp, err := c.doGet(ctx, requestURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list group members", logging.ErrKey, err, "group_id", groupID)
		return nil, domain.NewUnavailableError("directory group membership fetch failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var membersResp graphMembersResponse
	if err := json.NewDecoder(resp.Body).Decode(&membersResp); err != nil {
		slog.ErrorContext(ctx, "failed to decode group members response", logging.ErrKey, err)
		return nil, domain.NewInternalError("failed to decode group members response", err)
	}

	page := &domain.GroupMemberPage{NextCursor: membersResp.NextLink}
	for _, member := range membersResp.Value {
		// Prefer mail, fall back to the user principal name. Directory
		// objects with neither (e.g. nested groups or devices) are skipped.
		email := models.NormalizeEmail(member.Mail)
		if email == "" {
			email = models.NormalizeEmail(member.UserPrincipalName)
		}
		if email == "" {
			continue
		}
		page.Members = append(page.Members, domain.GroupMember{
			Email:       email,
			DisplayName: member.DisplayName,
		})
	}

	slog.DebugContext(ctx, "fetched group member page",
		"group_id", groupID,
		"member_count", len(page.Members),
		"has_next", page.NextCursor != "",
	)

	return page, nil
}
