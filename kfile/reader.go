package kfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/notargets/meshconv/types"
)

const (
	sectionMarker = '*'
	commentMarker = '$'
)

// Section is the keyword block the parser is currently inside
type Section int

const (
	SectionNone Section = iota
	SectionNode
	SectionElement
)

func (s Section) String() string {
	return [...]string{"None", "Node", "Element"}[s]
}

// ParserOptions control how a keyword file is turned into records
type ParserOptions struct {
	// Renumber replaces node ids with 1..N in the order they appear and
	// translates element connectivity to match
	Renumber bool
	Logger   logrus.FieldLogger
}

type rawElement struct {
	elem types.Element
	line int // Line number of the connectivity card
}

// Parser is a line driven reader for *NODE and *ELEMENT_SOLID blocks.
// Element records span two lines: the id card then the connectivity card.
type Parser struct {
	name    string
	opts    ParserOptions
	log     logrus.FieldLogger
	lineNo  int
	section Section
	// Element id card read and waiting for its connectivity card
	pending     *types.Element
	pendingLine int

	nodes    []types.Node
	rawElems []rawElement
	table    *Renumberer
	nodeLine map[int]int // Raw node id to the line it was defined on
}

func NewParser(name string, opts ParserOptions) *Parser {
	p := &Parser{
		name:     name,
		opts:     opts,
		log:      opts.Logger,
		nodeLine: make(map[int]int),
	}
	if p.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.log = l
	}
	if opts.Renumber {
		p.table = NewRenumberer()
	}
	return p
}

// Section reports the block the parser is in after the last line
func (p *Parser) Section() Section { return p.section }

func (p *Parser) formatError(field string, err error) error {
	return &types.FormatError{File: p.name, Line: p.lineNo, Field: field, Err: err}
}

// ParseLine consumes the next line of the file
func (p *Parser) ParseLine(line string) (err error) {
	p.lineNo++
	line = strings.TrimRight(line, "\r\n")
	if len(strings.TrimSpace(line)) == 0 {
		return
	}
	switch line[0] {
	case commentMarker:
		return
	case sectionMarker:
		return p.enterSection(line)
	}
	switch p.section {
	case SectionNode:
		err = p.readNode(line)
	case SectionElement:
		err = p.readElement(line)
	}
	return
}

func (p *Parser) enterSection(line string) (err error) {
	if err = p.closeElementRecord(); err != nil {
		return
	}
	keyword := strings.ToUpper(strings.Fields(line)[0])
	next := SectionNone
	switch {
	case keyword == "*NODE":
		next = SectionNode
	case keyword == "*ELEMENT", keyword == "*ELEMENT_SOLID":
		next = SectionElement
	case strings.HasPrefix(keyword, "*ELEMENT"):
		p.log.Warnf("%s:%d: skipping unsupported element card %s", p.name, p.lineNo, keyword)
	}
	if next != p.section {
		p.log.Debugf("%s:%d: %s -> %s section", p.name, p.lineNo, p.section, next)
	}
	p.section = next
	return
}

// closeElementRecord checks that no element is left without its
// connectivity card when an element block ends
func (p *Parser) closeElementRecord() error {
	if p.pending == nil {
		return nil
	}
	err := &types.FormatError{
		File:  p.name,
		Line:  p.pendingLine,
		Field: "eid",
		Err:   fmt.Errorf("truncated element record %d, connectivity card missing", p.pending.ID),
	}
	p.pending = nil
	return err
}

func (p *Parser) readNode(line string) (err error) {
	var (
		vals  [3]float64
		names = [4]string{"nid", "x", "y", "z"}
		raw   int
	)
	if raw, err = parseIntField(column(line, nodeColumns[0][0], nodeColumns[0][1])); err != nil {
		return p.formatError(names[0], err)
	}
	if raw <= 0 {
		return p.formatError(names[0], fmt.Errorf("node id must be positive, have %d", raw))
	}
	for i := 0; i < 3; i++ {
		c := nodeColumns[i+1]
		if vals[i], err = parseFloatField(column(line, c[0], c[1])); err != nil {
			return p.formatError(names[i+1], err)
		}
	}
	if prev, ok := p.nodeLine[raw]; ok {
		return p.formatError(names[0], fmt.Errorf("duplicate node id %d, first defined on line %d", raw, prev))
	}
	p.nodeLine[raw] = p.lineNo
	id := raw
	if p.table != nil {
		if id, err = p.table.Assign(raw); err != nil {
			return p.formatError(names[0], err)
		}
	}
	p.nodes = append(p.nodes, types.Node{ID: id, X: vals[0], Y: vals[1], Z: vals[2]})
	return
}

func (p *Parser) readElement(line string) (err error) {
	if p.pending == nil {
		var (
			el types.Element
		)
		if el.ID, err = parseIntField(column(line, 0, IDWidth)); err != nil {
			return p.formatError("eid", err)
		}
		if pid := column(line, IDWidth, 2*IDWidth); strings.TrimSpace(pid) != "" {
			if el.Part, err = parseIntField(pid); err != nil {
				return p.formatError("pid", err)
			}
		}
		p.pending, p.pendingLine = &el, p.lineNo
		return
	}
	el := *p.pending
	for i := 0; i < types.TetNodes; i++ {
		field := column(line, i*IDWidth, (i+1)*IDWidth)
		if el.Nodes[i], err = parseIntField(field); err != nil {
			return p.formatError(fmt.Sprintf("n%d", i+1), err)
		}
	}
	p.rawElems = append(p.rawElems, rawElement{elem: el, line: p.lineNo})
	p.pending = nil
	return
}

// Finish validates the collected records and resolves element connectivity
func (p *Parser) Finish() (mesh *types.Mesh, err error) {
	if err = p.closeElementRecord(); err != nil {
		return
	}
	if len(p.nodes) == 0 {
		return nil, &types.FormatError{File: p.name, Field: "*NODE", Err: fmt.Errorf("no nodes found")}
	}
	if len(p.rawElems) == 0 {
		return nil, &types.FormatError{File: p.name, Field: "*ELEMENT_SOLID", Err: fmt.Errorf("no elements found")}
	}
	mesh = &types.Mesh{
		Nodes:      p.nodes,
		Elements:   make([]types.Element, len(p.rawElems)),
		Renumbered: p.table != nil,
	}
	for k, re := range p.rawElems {
		el := re.elem
		for i, raw := range el.Nodes {
			if _, ok := p.nodeLine[raw]; !ok {
				return nil, &types.FormatError{
					File:  p.name,
					Line:  re.line,
					Field: fmt.Sprintf("n%d", i+1),
					Err:   fmt.Errorf("element %d references unknown node %d", el.ID, raw),
				}
			}
			if p.table != nil {
				el.Nodes[i], _ = p.table.Lookup(raw)
			}
		}
		mesh.Elements[k] = el
	}
	p.log.Debugf("%s: read %d lines", p.name, p.lineNo)
	return
}

// Parse reads a keyword file from r. name is used in error messages.
func Parse(name string, r io.Reader, opts ParserOptions) (mesh *types.Mesh, err error) {
	p := NewParser(name, opts)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err = p.ParseLine(scanner.Text()); err != nil {
			return
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return p.Finish()
}

// ReadFile parses the keyword file at path
func ReadFile(path string, opts ParserOptions) (*types.Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening mesh file")
	}
	defer file.Close()
	return Parse(path, file, opts)
}
