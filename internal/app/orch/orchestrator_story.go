package orch

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
)

const (
	storyPageLimit = 4096
	firstPageTitle = "Story so far"
	nextPageTitle  = "continued"
)

type StoryPage struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// StoryPages joins the words with spaces and cuts the text into pages of at
// most storyPageLimit characters, never splitting a word.
func StoryPages(entries iter.Seq[domain.Entry]) []StoryPage {
	var (
		pages []StoryPage
		words []string
		count int
	)
	title := firstPageTitle
	flush := func() {
		if len(words) == 0 {
			return
		}
		pages = append(pages, StoryPage{Title: title, Text: strings.Join(words, " ")})
		title = nextPageTitle
		words = words[:0]
	}
	for e := range entries {
		n := utf8.RuneCountInString(e.Word)
		if len(words) > 0 && count+1+n > storyPageLimit {
			flush()
			count = 0
		}
		if len(words) > 0 {
			count++
		}
		count += n
		words = append(words, e.Word)
	}
	flush()
	return pages
}

func (o *Orchestrator) Story(id domain.RoomID) ([]StoryPage, error) {
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return StoryPages(room.Story()), nil
}

// StoryOf renders the story of the room the connection is in.
func (o *Orchestrator) StoryOf(cid core.ConnID) ([]StoryPage, error) {
	room, _, err := o.resolveRoom(cid)
	if err != nil {
		return nil, err
	}
	return StoryPages(room.Story()), nil
}
