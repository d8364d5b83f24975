// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package domain

import "context"

// GroupMember is one identity from the external directory group, normalized
// to an email key.
type GroupMember struct {
	Email       string
	DisplayName string
}

// GroupMemberPage is one page of a cursor-driven membership listing. An empty
// NextCursor means the listing is complete.
type GroupMemberPage struct {
	Members    []GroupMember
	NextCursor string
}

// DirectoryProvider lists the membership of an external directory group. The
// synchronizer consumes the page sequence fully before committing any roster
// mutation, so a fetch error part way through never partially overwrites the
// roster.
type DirectoryProvider interface {
	// ListGroupMembers returns one page of group membership. Pass an empty
	// cursor for the first page and the returned NextCursor for subsequent
	// pages.
	ListGroupMembers(ctx context.Context, groupID string, cursor string) (*GroupMemberPage, error)
}
