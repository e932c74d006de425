package conversation

// Log is the ordered sequence of turns for the active session.
// It is append-only; the zero value is ready to use.
type Log struct {
	turns []Turn
}

// Append adds turn at the end of the log.
func (l *Log) Append(turn Turn) {
	l.turns = append(l.turns, turn)
}

// All returns a snapshot of the turns in insertion order.
func (l *Log) All() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Last returns the most recently appended turn.
func (l *Log) Last() (Turn, bool) {
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}

func (l *Log) Clear() {
	l.turns = nil
}

// Documents holds uploaded documents in upload order.
type Documents struct {
	docs []Document
}

func (d *Documents) Add(doc Document) {
	d.docs = append(d.docs, doc)
}

// All returns a snapshot of the documents in upload order.
func (d *Documents) All() []Document {
	out := make([]Document, len(d.docs))
	copy(out, d.docs)
	return out
}

func (d *Documents) Clear() {
	d.docs = nil
}
