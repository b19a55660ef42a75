package controller

import (
	"context"

	"gobengali/internal/translit"
)

// suggestLocked looks up the word before the caret in the background. A
// newer keystroke supersedes the lookup.
func (c *Controller) suggestLocked(s string) {
	if c.tlCancel != nil {
		c.tlCancel()
		c.tlCancel = nil
	}
	c.tlGen++
	gen := c.tlGen

	tok := translit.ExtractToken(s, c.ed.CaretOffset(), c.opts.Lookback)
	if !tok.Qualifies() {
		if c.menu.IsOpen() {
			c.menu.Close()
			c.queued = append(c.queued, Event{Kind: EventSuggestions})
		}
		return
	}
	anchor, caret := c.ed.CoordsAtOffset(tok.Start), c.ed.CoordsAtOffset(tok.End)

	ctx, cancel := context.WithCancel(context.Background())
	c.tlCancel = cancel
	c.tlWG.Add(1)
	go func() {
		defer c.tlWG.Done()
		defer cancel()
		res := c.lookup.Suggest(ctx, tok)

		c.mu.Lock()
		if c.closed || gen != c.tlGen {
			c.mu.Unlock()
			return
		}
		c.rec.Suggested(res.Source)
		c.menu.Open(res)
		c.menu.Anchor, c.menu.Caret = anchor, caret
		c.queued = append(c.queued, Event{Kind: EventSuggestions, Suggestions: res})
		c.unlockAndNotify()
	}()
}

// Menu returns a snapshot of the transliteration menu.
func (c *Controller) Menu() translit.Menu {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.menu
}

// HandleKey routes a key press to the open menu. On commit the word before
// the caret is replaced with the selected suggestion and a space.
func (c *Controller) HandleKey(k translit.Key) (translit.Action, error) {
	c.mu.Lock()
	act := c.menu.HandleKey(k)
	var (
		tok    translit.Token
		choice string
	)
	switch act {
	case translit.ActionCommit:
		choice, _ = c.menu.Choice()
		tok = c.menu.Result().Token
		c.menu.Close()
		c.queued = append(c.queued, Event{Kind: EventSuggestions})
	case translit.ActionDismiss:
		c.queued = append(c.queued, Event{Kind: EventSuggestions})
	}
	c.unlockAndNotify()

	if act == translit.ActionCommit {
		if err := translit.Replace(c.ed, tok, choice); err != nil {
			return act, err
		}
	}
	return act, nil
}

// SelectSuggestion moves the menu cursor to i.
func (c *Controller) SelectSuggestion(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.menu.Select(i)
}
