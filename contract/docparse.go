package contract

import "strings"

// Doc holds the structured pieces of a handler doc comment.
type Doc struct {
	// Summary is the first line of the leading paragraph.
	Summary string

	// Description is the remaining free text, paragraphs joined by blank
	// lines.
	Description string

	// Params maps parameter names to their descriptions.
	Params map[string]string

	// Returns describes the implicit success response.
	Returns string

	// Raises lists error types the handler may return, in order.
	Raises []RaiseDoc
}

// RaiseDoc is one entry of a Raises: section.
type RaiseDoc struct {
	Name        string
	Description string
}

// ParseDoc extracts operation documentation from a free-form doc comment.
//
// The first line becomes the operation summary and the remaining free text
// the description. Three sections are recognized, each introduced by a
// heading on its own line and containing indented entries:
//
//	Create a user in the organization.
//
//	The user is created in the default team unless the request
//	says otherwise.
//
//	Params:
//	  org: the organization slug
//	  body: the user to create
//
//	Returns:
//	  the created user
//
//	Raises:
//	  NotFoundError: the organization does not exist
//
// Params: entries document handler parameters, Returns: documents the
// response derived from the handler's return type, and Raises: names error
// types whose registry mapping yields additional documented responses.
func ParseDoc(text string) Doc {
	var doc Doc
	var body []string
	var returns []string

	section := ""
	lastParam := ""

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)

		switch trimmed {
		case "Params:":
			section = "params"
			continue
		case "Returns:":
			section = "returns"
			continue
		case "Raises:":
			section = "raises"
			continue
		}

		if section == "" {
			body = append(body, line)
			continue
		}

		if trimmed == "" {
			continue
		}
		indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
		if !indented {
			// A flush-left line ends the section.
			section = ""
			body = append(body, line)
			continue
		}

		switch section {
		case "params":
			if name, desc, ok := splitDocEntry(trimmed); ok {
				if doc.Params == nil {
					doc.Params = make(map[string]string)
				}
				doc.Params[name] = desc
				lastParam = name
			} else if lastParam != "" {
				doc.Params[lastParam] = joinDocText(doc.Params[lastParam], trimmed)
			}
		case "raises":
			if name, desc, ok := splitDocEntry(trimmed); ok {
				doc.Raises = append(doc.Raises, RaiseDoc{Name: name, Description: desc})
			} else if len(doc.Raises) > 0 {
				last := &doc.Raises[len(doc.Raises)-1]
				last.Description = joinDocText(last.Description, trimmed)
			}
		case "returns":
			returns = append(returns, trimmed)
		}
	}

	doc.Returns = strings.Join(returns, " ")
	doc.Summary, doc.Description = splitDocBody(body)
	return doc
}

// splitDocEntry parses a "name: text" section entry. The name must be a
// single word; anything else is treated as a continuation line.
func splitDocEntry(s string) (string, string, bool) {
	name, desc, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	return name, strings.TrimSpace(desc), true
}

func joinDocText(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + " " + next
}

// splitDocBody separates the free text into the summary line and the
// description paragraphs.
func splitDocBody(lines []string) (string, string) {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	lines = lines[start:end]
	if len(lines) == 0 {
		return "", ""
	}

	summary := strings.TrimSpace(lines[0])

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		current = append(current, trimmed)
	}
	flush()

	return summary, strings.Join(paragraphs, "\n\n")
}
