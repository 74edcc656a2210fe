package svgdom

// a pointer is captured by at most one element;
// capturing it again moves the routing.
func (doc *Document) setCapture(pointerID int, n *Node) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	doc.captures[pointerID] = n
}

func (doc *Document) releaseCapture(pointerID int, n *Node) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.captures[pointerID] == n {
		delete(doc.captures, pointerID)
	}
}

// CaptureTarget returns the element currently capturing the pointer.
func (doc *Document) CaptureTarget(pointerID int) (*Node, bool) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	n, ok := doc.captures[pointerID]
	return n, ok
}

// EndPointer drops any capture of the pointer, as the host
// does when the pointer session ends (pointer lift, cancel).
func (doc *Document) EndPointer(pointerID int) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	delete(doc.captures, pointerID)
}
