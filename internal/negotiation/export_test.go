package negotiation

import "time"

func (l *Ledger) SetNow(f func() time.Time)     { l.now = f }
func (n *Negotiator) SetNow(f func() time.Time) { n.now = f }
