// Copyright 2025 The hewn Authors
// SPDX-License-Identifier: MIT

package expr

import (
	"bytes"
	"fmt"
	"io"

	"hewn.build/pkg/internal/aterm"
	"zombiezen.com/go/nix"
)

// Parse parses the canonical serialization of an expression.
// Terms that are well-formed ATerm text but not one of the three
// expression shapes are reported as a [*BadTermError].
// White space after the expression is ignored;
// any other trailing data is a [*BadTermError].
func Parse(src []byte) (Expression, error) {
	r := bytes.NewReader(src)
	p := &parser{s: aterm.NewScanner(r), src: src}
	tok, err := p.read()
	if err != nil {
		return nil, err
	}
	if tok.Kind != aterm.Atom {
		return nil, &BadTermError{Term: trim(src), Msg: "not an expression"}
	}
	var e Expression
	switch tok.Value {
	case "Include":
		e, err = p.parseInclude()
	case "Derive":
		e, err = p.parseDerive()
	case "Slice":
		e, err = p.parseSlice()
	default:
		return nil, &BadTermError{Term: tok.Value, Msg: "unknown constructor"}
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.s.ReadToken(); err != io.EOF || len(bytes.TrimSpace(src[len(src)-r.Len():])) > 0 {
		return nil, &BadTermError{Term: trim(src), Msg: "trailing data after expression"}
	}
	return e, nil
}

// ParseSlice parses the canonical serialization of a slice.
// Expressions of any other shape are reported as a [*BadTermError].
func ParseSlice(src []byte) (*Slice, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	sl, ok := e.(*Slice)
	if !ok {
		return nil, &BadTermError{Term: trim(src), Msg: "not a slice"}
	}
	return sl, nil
}

type parser struct {
	s   *aterm.Scanner
	src []byte
}

func (p *parser) read() (aterm.Token, error) {
	tok, err := p.s.ReadToken()
	if err != nil {
		return aterm.Token{}, &BadTermError{Term: trim(p.src), Msg: err.Error()}
	}
	return tok, nil
}

func (p *parser) expect(kind aterm.TokenKind) (aterm.Token, error) {
	tok, err := p.read()
	if err != nil {
		return aterm.Token{}, err
	}
	if tok.Kind != kind {
		return aterm.Token{}, &BadTermError{
			Term: tok.String(),
			Msg:  fmt.Sprintf("expected %v", kind),
		}
	}
	return tok, nil
}

func (p *parser) string() (string, error) {
	tok, err := p.expect(aterm.String)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

func (p *parser) id() (nix.Hash, error) {
	s, err := p.string()
	if err != nil {
		return nix.Hash{}, err
	}
	return ParseID(s)
}

func (p *parser) parseInclude() (Include, error) {
	id, err := p.id()
	if err != nil {
		return Include{}, err
	}
	if _, err := p.expect(aterm.RParen); err != nil {
		return Include{}, err
	}
	return Include{ID: id}, nil
}

func (p *parser) parseDerive() (*Derive, error) {
	drv := new(Derive)

	if _, err := p.expect(aterm.LBracket); err != nil {
		return nil, err
	}
	for {
		tok, err := p.read()
		if err != nil {
			return nil, err
		}
		if tok.Kind == aterm.RBracket {
			break
		}
		if tok.Kind != aterm.LParen {
			return nil, &BadTermError{Term: tok.String(), Msg: "expected output tuple"}
		}
		var out Output
		if out.Path, err = p.string(); err != nil {
			return nil, err
		}
		if out.ContentID, err = p.id(); err != nil {
			return nil, err
		}
		if _, err := p.expect(aterm.RParen); err != nil {
			return nil, err
		}
		drv.Outputs = append(drv.Outputs, out)
	}

	if _, err := p.expect(aterm.LBracket); err != nil {
		return nil, err
	}
	for {
		tok, err := p.read()
		if err != nil {
			return nil, err
		}
		if tok.Kind == aterm.RBracket {
			break
		}
		if tok.Kind != aterm.String {
			return nil, &BadTermError{Term: tok.String(), Msg: "expected input id"}
		}
		in, err := ParseID(tok.Value)
		if err != nil {
			return nil, err
		}
		drv.Inputs = append(drv.Inputs, in)
	}

	var err error
	if drv.Builder, err = p.string(); err != nil {
		return nil, err
	}
	if drv.Platform, err = p.string(); err != nil {
		return nil, err
	}

	if _, err := p.expect(aterm.LBracket); err != nil {
		return nil, err
	}
	for {
		tok, err := p.read()
		if err != nil {
			return nil, err
		}
		if tok.Kind == aterm.RBracket {
			break
		}
		if tok.Kind != aterm.LParen {
			return nil, &BadTermError{Term: tok.String(), Msg: "expected binding tuple"}
		}
		var b Binding
		if b.Name, err = p.string(); err != nil {
			return nil, err
		}
		if b.Value, err = p.string(); err != nil {
			return nil, err
		}
		if _, err := p.expect(aterm.RParen); err != nil {
			return nil, err
		}
		drv.Bindings = append(drv.Bindings, b)
	}

	if _, err := p.expect(aterm.RParen); err != nil {
		return nil, err
	}
	return drv, nil
}

func (p *parser) parseSlice() (*Slice, error) {
	sl := new(Slice)

	if _, err := p.expect(aterm.LBracket); err != nil {
		return nil, err
	}
	for {
		tok, err := p.read()
		if err != nil {
			return nil, err
		}
		if tok.Kind == aterm.RBracket {
			break
		}
		if tok.Kind != aterm.String {
			return nil, &BadTermError{Term: tok.String(), Msg: "expected root id"}
		}
		root, err := ParseID(tok.Value)
		if err != nil {
			return nil, err
		}
		sl.Roots = append(sl.Roots, root)
	}

	if _, err := p.expect(aterm.LBracket); err != nil {
		return nil, err
	}
	for {
		tok, err := p.read()
		if err != nil {
			return nil, err
		}
		if tok.Kind == aterm.RBracket {
			break
		}
		if tok.Kind != aterm.LParen {
			return nil, &BadTermError{Term: tok.String(), Msg: "expected slice element tuple"}
		}
		var elem SliceElem
		if elem.Path, err = p.string(); err != nil {
			return nil, err
		}
		if elem.ContentID, err = p.id(); err != nil {
			return nil, err
		}
		if _, err := p.expect(aterm.LBracket); err != nil {
			return nil, err
		}
		for {
			tok, err := p.read()
			if err != nil {
				return nil, err
			}
			if tok.Kind == aterm.RBracket {
				break
			}
			if tok.Kind != aterm.String {
				return nil, &BadTermError{Term: tok.String(), Msg: "expected reference id"}
			}
			ref, err := ParseID(tok.Value)
			if err != nil {
				return nil, err
			}
			elem.Refs = append(elem.Refs, ref)
		}
		if _, err := p.expect(aterm.RParen); err != nil {
			return nil, err
		}
		sl.Elems = append(sl.Elems, elem)
	}

	if _, err := p.expect(aterm.RParen); err != nil {
		return nil, err
	}
	return sl, nil
}

const maxTermFragment = 80

func trim(src []byte) string {
	if len(src) <= maxTermFragment {
		return string(src)
	}
	return string(src[:maxTermFragment]) + "..."
}
