// Package prompt builds the instruction strings sent to the oracle. Every
// function is pure: the same input always yields the same prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/polidossier/engine/domain"
)

// System instructions, one per query kind.
const (
	SystemIdentify = `You are a helpful assistant that specializes in identifying U.S. politicians based on user queries. You only respond with valid JSON.`
	SystemDossier  = `You are a helpful assistant that provides comprehensive information about U.S. politicians. You only respond with valid JSON.`
	SystemPhoto    = `You are a helpful assistant that finds official photos of U.S. politicians. Provide only the direct image URL with no other text.`
	SystemNews     = `You are a helpful assistant that finds recent news articles about U.S. politicians. Provide information in valid JSON format.`
	SystemPosts    = `You are a helpful assistant that finds recent social media posts by U.S. politicians. Provide information in valid JSON format.`
)

const identifyReply = `Respond with a JSON object that includes the politician's full name ("name"), title (current position, "title"), state ("state"), and a unique ID that could be used to identify them, like their full name with no spaces ("id"). If you cannot confidently identify a politician based on this information, respond with a JSON object with "success": false and a "message" explaining why.`

// Identify builds the initial identification prompt.
func Identify(q domain.SearchQuery) string {
	var b strings.Builder
	writeCriteria(&b, q)
	b.WriteString("\n")
	b.WriteString(identifyReply)
	return b.String()
}

// Refine builds the identification prompt with the refinement details folded in.
func Refine(q domain.SearchQuery) string {
	var b strings.Builder
	writeCriteria(&b, q)
	fmt.Fprintf(&b, "Additional Refinement Details: %s\n", domain.OrNotProvided(q.RefineInfo))
	b.WriteString("\n")
	b.WriteString(identifyReply)
	return b.String()
}

func writeCriteria(b *strings.Builder, q domain.SearchQuery) {
	b.WriteString("Find a politician currently in federal, state, or local office in the United States based on the following information:\n")
	fmt.Fprintf(b, "Name: %s\n", domain.OrNotProvided(q.Name))
	fmt.Fprintf(b, "State: %s\n", domain.OrNotProvided(q.State))
	fmt.Fprintf(b, "Additional Information: %s\n", domain.OrNotProvided(q.AdditionalInfo))
}

// Dossier asks for the full-details object for a basic record.
func Dossier(p domain.Politician) string {
	return fmt.Sprintf(`Provide comprehensive details about the politician: %s, who is the %s from %s.

Include the following information as a single JSON object:
1. "biography": a brief biography/background (1-3 paragraphs)
2. "age": their approximate age as a number
3. "donations": campaign donation history from OpenSecrets, a list of top donors as objects with "donor", "amount" (number) and "year" (number)
4. "israelDonations": donations from AIPAC or other pro-Israel advocacy groups, in the same shape, or an empty list
5. "socialMedia": an object mapping platform name to handle or URL
6. "twitter": their Twitter/X handle if they have one, otherwise omit it`,
		domain.OrNotProvided(p.Name), domain.OrNotProvided(p.Title), domain.OrNotProvided(p.State))
}

// Photo asks for a bare image URL. The reply is not JSON.
func Photo(name string) string {
	return fmt.Sprintf("Find a publicly available photo URL for U.S. politician %s. Respond with just the URL, no additional text.", domain.OrNotProvided(name))
}

// News asks for recent articles under an "articles" key.
func News(name string) string {
	return fmt.Sprintf(`Find 3 recent news articles about U.S. politician %s. For each article, provide the "title", "date" published, a brief "summary", and "url". Format as a JSON object with an "articles" list.`, domain.OrNotProvided(name))
}

// Posts asks for recent posts under a "tweets" key.
func Posts(handle string) string {
	return fmt.Sprintf(`Find 3 recent posts by %s on Twitter/X. For each post, provide the "text" content and "date" posted. Format as a JSON object with a "tweets" list.`, domain.OrNotProvided(handle))
}
