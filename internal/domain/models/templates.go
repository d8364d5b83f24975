// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package models

import "strings"

// Default event templates, used when no override is configured for a
// meeting type.
const (
	DefaultEventTitle       = "Intro: {person1} <> {person2}"
	DefaultEventDescription = "You two have been matched for a 15 minute intro chat. Enjoy!"
)

// EventTemplates are the title and description templates for created events.
// Supported placeholders: {person1}, {person2}, {email1}, {email2}. Unknown
// placeholders are left as-is.
type EventTemplates struct {
	Title       string
	Description string
}

// DefaultEventTemplates returns the built-in templates.
func DefaultEventTemplates() EventTemplates {
	return EventTemplates{
		Title:       DefaultEventTitle,
		Description: DefaultEventDescription,
	}
}

// TemplateContext carries the pairing substituted into event templates.
type TemplateContext struct {
	Requester Member
	Partner   Member
}

// RenderTitle expands the title template for the pairing.
func (t EventTemplates) RenderTitle(tc TemplateContext) string {
	return expand(t.Title, tc)
}

// RenderDescription expands the description template for the pairing.
func (t EventTemplates) RenderDescription(tc TemplateContext) string {
	return expand(t.Description, tc)
}

func expand(template string, tc TemplateContext) string {
	replacer := strings.NewReplacer(
		"{person1}", tc.Requester.DisplayNameOrDefault(),
		"{person2}", tc.Partner.DisplayNameOrDefault(),
		"{email1}", tc.Requester.Email,
		"{email2}", tc.Partner.Email,
	)
	return replacer.Replace(template)
}
