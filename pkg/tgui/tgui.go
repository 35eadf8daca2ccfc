package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline builds an inline keyboard, one Row call per keyboard row.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline { return &Inline{rm: &tele.ReplyMarkup{}} }

func (k *Inline) Row(btns ...tele.Btn) *Inline {
	if len(btns) == 0 {
		return k
	}
	k.rows = append(k.rows, k.rm.Row(btns...))
	k.rm.Inline(k.rows...)
	return k
}

// Markup returns nil when no row was added.
func (k *Inline) Markup() *tele.ReplyMarkup {
	if len(k.rows) == 0 {
		return nil
	}
	return k.rm
}

func URLBtn(text, url string) tele.Btn { return tele.Btn{Text: text, URL: url} }
