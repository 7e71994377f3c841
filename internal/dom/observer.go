package dom

// IntersectionEntry describes one observed intersection change.
type IntersectionEntry struct {
	Target            *Element
	IsIntersecting    bool
	IntersectionRatio float64
}

// IntersectionObserver watches elements for viewport intersection.
// There is no real viewport here; TriggerIntersection on the document
// drives callbacks, which is how both the runtime's tests and embedding
// hosts simulate scroll.
type IntersectionObserver struct {
	doc          *Document
	callback     func([]IntersectionEntry)
	Threshold    float64
	RootMargin   string
	targets      map[*Element]bool
	disconnected bool
}

// NewIntersectionObserver registers an observer on the document.
func (d *Document) NewIntersectionObserver(cb func([]IntersectionEntry), threshold float64, rootMargin string) *IntersectionObserver {
	o := &IntersectionObserver{
		doc:        d,
		callback:   cb,
		Threshold:  threshold,
		RootMargin: rootMargin,
		targets:    make(map[*Element]bool),
	}
	d.observers = append(d.observers, o)
	return o
}

// Observe starts watching an element.
func (o *IntersectionObserver) Observe(el *Element) {
	if !o.disconnected {
		o.targets[el] = true
	}
}

// Unobserve stops watching an element.
func (o *IntersectionObserver) Unobserve(el *Element) {
	delete(o.targets, el)
}

// Disconnect stops the observer entirely; it never fires again.
func (o *IntersectionObserver) Disconnect() {
	o.disconnected = true
	o.targets = make(map[*Element]bool)
}

// Observes reports whether the observer currently watches el.
func (o *IntersectionObserver) Observes(el *Element) bool {
	return !o.disconnected && o.targets[el]
}

// TriggerIntersection simulates an intersection change for el,
// invoking every observer watching it whose threshold the ratio meets.
func (d *Document) TriggerIntersection(el *Element, ratio float64) {
	for _, o := range d.observers {
		if o.disconnected || !o.targets[el] {
			continue
		}
		if ratio < o.Threshold {
			continue
		}
		o.callback([]IntersectionEntry{{
			Target:            el,
			IsIntersecting:    ratio > 0,
			IntersectionRatio: ratio,
		}})
	}
}
