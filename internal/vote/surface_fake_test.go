package vote

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeNode é um nó roteirizado do DOM de teste. onClick e onSelect deixam o
// teste mutar a "página" em resposta às ações do fluxo.
type fakeNode struct {
	text     string
	onClick  func(f *fakeSurface)
	onSelect func(f *fakeSurface, label string)
}

// fakeSurface implementa Surface sobre um DOM em memória. Toda ação fica
// registrada para as asserções; Wait nunca dorme de verdade.
type fakeSurface struct {
	doc     map[string][]*fakeNode
	fills   map[string]string
	selects map[string]string
	clicks  []string
	navs    []string
	closed  bool
}

var _ Surface = (*fakeSurface)(nil)

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		doc:     make(map[string][]*fakeNode),
		fills:   make(map[string]string),
		selects: make(map[string]string),
	}
}

func (f *fakeSurface) set(query string, nodes ...*fakeNode) {
	f.doc[query] = nodes
}

func (f *fakeSurface) setTexts(query string, texts ...string) {
	nodes := make([]*fakeNode, len(texts))
	for i, t := range texts {
		nodes[i] = &fakeNode{text: t}
	}
	f.doc[query] = nodes
}

func (f *fakeSurface) setBody(text string) {
	f.setTexts("body", text)
}

func (f *fakeSurface) remove(query string) {
	delete(f.doc, query)
}

func elKey(el Element) string {
	return fmt.Sprintf("%s[%d]", el.Query, el.Index)
}

func (f *fakeSurface) node(el Element) (*fakeNode, error) {
	nodes := f.doc[el.Query]
	if el.Index >= len(nodes) {
		return nil, fmt.Errorf("element %s detached", elKey(el))
	}
	return nodes[el.Index], nil
}

func (f *fakeSurface) Navigate(_ context.Context, url string) error {
	f.navs = append(f.navs, url)
	return nil
}

func (f *fakeSurface) WaitSettle(context.Context) error { return nil }

func (f *fakeSurface) Locate(_ context.Context, query string) ([]Element, error) {
	nodes := f.doc[query]
	els := make([]Element, len(nodes))
	for i := range nodes {
		els[i] = Element{Query: query, Index: i}
	}
	return els, nil
}

func (f *fakeSurface) Fill(_ context.Context, el Element, text string) error {
	if _, err := f.node(el); err != nil {
		return err
	}
	f.fills[elKey(el)] = text
	return nil
}

func (f *fakeSurface) SelectLabel(_ context.Context, el Element, label string) error {
	n, err := f.node(el)
	if err != nil {
		return err
	}
	f.selects[elKey(el)] = label
	if n.onSelect != nil {
		n.onSelect(f, label)
	}
	return nil
}

func (f *fakeSurface) Click(_ context.Context, el Element) error {
	n, err := f.node(el)
	if err != nil {
		return err
	}
	f.clicks = append(f.clicks, elKey(el))
	if n.onClick != nil {
		n.onClick(f)
	}
	return nil
}

func (f *fakeSurface) Text(_ context.Context, el Element) (string, error) {
	n, err := f.node(el)
	if err != nil {
		return "", err
	}
	return n.text, nil
}

func (f *fakeSurface) Count(_ context.Context, query string) (int, error) {
	return len(f.doc[query]), nil
}

func (f *fakeSurface) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (f *fakeSurface) Close(context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeSurface) clickCount(query string) int {
	n := 0
	for _, c := range f.clicks {
		if len(c) >= len(query) && c[:len(query)] == query {
			n++
		}
	}
	return n
}

// shortTimeouts encurta os prazos de polling para os testes que exercitam
// caminhos de timeout.
func shortTimeouts(t *testing.T) {
	t.Helper()
	oldTimeout, oldPoll := lookupTimeout, lookupPoll
	lookupTimeout = 30 * time.Millisecond
	lookupPoll = time.Millisecond
	t.Cleanup(func() {
		lookupTimeout, lookupPoll = oldTimeout, oldPoll
	})
}
