package channels

import "strings"

const codeFence = "```"

// splitMessage breaks content into chunks of at most limit runes. It
// prefers to cut at a newline, then at a space. A chunk that ends inside a
// ``` block gets the fence closed, and the next chunk reopens it, so every
// chunk renders on its own.
func splitMessage(content string, limit int) []string {
	if content == "" {
		return nil
	}
	// Leave room for "\n```" on a chunk that has to close a fence.
	room := limit - len("\n"+codeFence)
	if room < 1 {
		room = limit
	}

	var chunks []string
	runes := []rune(content)
	reopen := false

	for len(runes) > 0 {
		prefix := ""
		if reopen {
			prefix = codeFence + "\n"
		}
		if len(prefix)+len(runes) <= limit {
			chunks = append(chunks, prefix+string(runes))
			break
		}

		avail := room - len(prefix)
		if avail < 1 {
			avail = 1
		}
		cut := findCut(runes, avail)
		chunk := string(runes[:cut])

		open := reopen != (strings.Count(chunk, codeFence)%2 == 1)
		if open {
			chunk += "\n" + codeFence
		}
		chunks = append(chunks, prefix+chunk)

		reopen = open
		runes = []rune(strings.TrimLeft(string(runes[cut:]), "\n"))
	}

	return chunks
}

// findCut returns where to end a chunk of at most avail runes.
func findCut(runes []rune, avail int) int {
	if avail >= len(runes) {
		return len(runes)
	}
	window := runes[:avail]
	if i := lastIndexRune(window, '\n', avail/2); i > 0 {
		return i
	}
	if i := lastIndexRune(window, ' ', avail/2); i > 0 {
		return i
	}
	return avail
}

// lastIndexRune finds r within the last searchWindow runes.
func lastIndexRune(runes []rune, r rune, searchWindow int) int {
	stop := len(runes) - searchWindow
	if stop < 0 {
		stop = 0
	}
	for i := len(runes) - 1; i >= stop; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
