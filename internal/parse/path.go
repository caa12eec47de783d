package parse

import "encoding/xml"

// segment is one open ancestor element.
type segment struct {
	name  string
	attrs map[string]string
}

// pathContext tracks the ancestor elements enclosing the markup node
// currently being processed. Segments are pushed on start tags and
// popped on end tags; every dispatch decision in the dialect readers is
// a suffix or membership query against it.
type pathContext struct {
	segments []segment
}

func (p *pathContext) enter(name string, attrs map[string]string) {
	p.segments = append(p.segments, segment{name: name, attrs: attrs})
}

// leave pops the innermost segment. An empty path here means the event
// source delivered unbalanced events, which its well-formedness checks
// rule out, so this panics instead of returning an error.
func (p *pathContext) leave() segment {
	if len(p.segments) == 0 {
		panic("parse: leave on empty element path")
	}
	s := p.segments[len(p.segments)-1]
	p.segments = p.segments[:len(p.segments)-1]
	return s
}

// endsWith reports whether the trailing path segments equal names, in
// order and exactly.
func (p *pathContext) endsWith(names ...string) bool {
	if len(names) > len(p.segments) {
		return false
	}
	off := len(p.segments) - len(names)
	for i, n := range names {
		if p.segments[off+i].name != n {
			return false
		}
	}
	return true
}

// contains reports whether any open ancestor has the given name.
func (p *pathContext) contains(name string) bool {
	for _, s := range p.segments {
		if s.name == name {
			return true
		}
	}
	return false
}

// top returns the attributes of the innermost open element, nil when the
// path is empty.
func (p *pathContext) top() map[string]string {
	if len(p.segments) == 0 {
		return nil
	}
	return p.segments[len(p.segments)-1].attrs
}

// attrMap flattens an attribute list into a name to value map. Duplicate
// names keep the last value.
func attrMap(attrs []xml.Attr) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

// attrOr returns the named attribute or def when it is absent.
func attrOr(attrs map[string]string, name, def string) string {
	if v, ok := attrs[name]; ok {
		return v
	}
	return def
}
