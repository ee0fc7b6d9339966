package message

import (
	"bytes"
	"fmt"
)

// Header is one RFC 5322 header field, in the order it was added.
type Header struct {
	Name  string
	Value string
}

// Part is a node in the MIME tree: either a leaf carrying encoded body
// bytes, or a multipart node carrying an ordered list of children behind a
// boundary.
type Part struct {
	Headers []Header

	// Leaf fields.
	body    []byte
	cte     CTE
	cteSet  bool // true if the caller overrode the CTE via WithCTE
	textual bool

	// Multipart fields.
	boundary string
	children []*Part
}

// NewPart builds a leaf part with the given Content-Type and raw
// (unencoded) body. textual hints whether non-7bit-clean content should
// prefer quoted-printable (true, e.g. "text/plain") over base64 (false,
// e.g. "application/octet-stream").
func NewPart(contentType string, body []byte, textual bool) *Part {
	p := &Part{body: body, textual: textual}
	p.Headers = append(p.Headers, Header{"Content-Type", contentType})
	return p
}

// WithCTE overrides the automatically-selected Content-Transfer-Encoding.
// An override inconsistent with the body (e.g. 7bit over non-ASCII bytes)
// is rejected at Build time, not here, since the caller may still append
// more headers before building.
func (p *Part) WithCTE(cte CTE) *Part {
	p.cte = cte
	p.cteSet = true
	return p
}

// AddHeader appends an extra header to this part.
func (p *Part) AddHeader(name, value string) *Part {
	p.Headers = append(p.Headers, Header{name, value})
	return p
}

// NewMultipart builds a multipart/<subtype> node with the given children
// and a freshly generated boundary. Regenerates the boundary (up to a few
// times) if "--" followed by it occurs anywhere in any child's rendered
// bytes.
func NewMultipart(subtype string, children ...*Part) (*Part, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("message: multipart/%s must have at least one child", subtype)
	}
	p := &Part{children: children}

	for attempt := 0; attempt < 5; attempt++ {
		boundary, err := newBoundary()
		if err != nil {
			return nil, fmt.Errorf("message: generating boundary: %w", err)
		}
		if !anyChildContainsBoundary(children, boundary) {
			p.boundary = boundary
			break
		}
	}
	if p.boundary == "" {
		return nil, fmt.Errorf("message: could not generate a non-colliding boundary after 5 attempts")
	}

	p.Headers = append(p.Headers, Header{
		Name:  "Content-Type",
		Value: fmt.Sprintf("multipart/%s; boundary=\"%s\"", subtype, p.boundary),
	})
	return p, nil
}

func anyChildContainsBoundary(children []*Part, boundary string) bool {
	for _, c := range children {
		var buf bytes.Buffer
		if err := c.render(&buf); err != nil {
			continue
		}
		if boundaryCollides(buf.Bytes(), boundary) {
			return true
		}
	}
	return false
}

// effectiveCTE resolves the CTE this leaf will actually use, validating
// any caller override against the body.
func (p *Part) effectiveCTE() (CTE, error) {
	if p.cteSet {
		if err := validateOverride(p.body, p.cte); err != nil {
			return 0, err
		}
		return p.cte, nil
	}
	return selectCTE(p.body, p.textual), nil
}

// render writes this part's headers and body (or, for a multipart node,
// its children delimited by its boundary) into buf.
func (p *Part) render(buf *bytes.Buffer) error {
	if len(p.children) > 0 {
		return p.renderMultipart(buf)
	}
	return p.renderLeaf(buf)
}

func (p *Part) renderLeaf(buf *bytes.Buffer) error {
	cte, err := p.effectiveCTE()
	if err != nil {
		return err
	}
	headers := p.Headers
	headers = append(append([]Header{}, headers...), Header{"Content-Transfer-Encoding", cte.String()})
	for _, h := range headers {
		buf.WriteString(foldHeader(h.Name, encodeHeaderValue(h.Value)))
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(encodeBody(p.body, cte))
	return nil
}

func (p *Part) renderMultipart(buf *bytes.Buffer) error {
	for _, h := range p.Headers {
		buf.WriteString(foldHeader(h.Name, encodeHeaderValue(h.Value)))
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")

	for _, child := range p.children {
		buf.WriteString("--" + p.boundary + "\r\n")
		if err := child.render(buf); err != nil {
			return err
		}
		buf.WriteString("\r\n")
	}
	buf.WriteString("--" + p.boundary + "--\r\n")
	return nil
}
