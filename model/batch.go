package model

import "fmt"

// A Batch is a padded grid of sessions.
//
// It holds batchSize sessions of up to MaxSession
// utterances each.
// Token-based encoders read Tokens, a grid of token ID
// sequences padded out to MaxUtterance tokens; the
// feed-forward encoder reads Features, one fixed-size
// vector per utterance slot.
// UttrLens and SessLens declare the real lengths inside
// the padding; Targets carries one class per real
// utterance position.
type Batch struct {
	Tokens   [][][]int
	Features [][][]float64

	UttrLens [][]int
	SessLens []int

	Targets [][]int
}

// Size returns the number of sessions.
func (b *Batch) Size() int {
	return len(b.SessLens)
}

// MaxSession returns the padded utterance-per-session
// dimension.
func (b *Batch) MaxSession() int {
	if len(b.UttrLens) == 0 {
		return 0
	}
	return len(b.UttrLens[0])
}

// Check validates the declared lengths against the padded
// dimensions.
//
// If needTargets is set, it also requires one target per
// real utterance position.
func (b *Batch) Check(needTargets bool) error {
	n := b.Size()
	if len(b.UttrLens) != n {
		return fmt.Errorf("batch: %d sessions but %d utterance length rows", n,
			len(b.UttrLens))
	}
	maxSess := b.MaxSession()
	for i, sessLen := range b.SessLens {
		if sessLen < 0 || sessLen > maxSess {
			return fmt.Errorf("batch: session %d: length %d out of range [0, %d]",
				i, sessLen, maxSess)
		}
		if len(b.UttrLens[i]) != maxSess {
			return fmt.Errorf("batch: session %d: %d utterance lengths, want %d",
				i, len(b.UttrLens[i]), maxSess)
		}
		for j, uttrLen := range b.UttrLens[i] {
			if j >= sessLen && uttrLen != 0 {
				return fmt.Errorf("batch: session %d: padding utterance %d has length %d",
					i, j, uttrLen)
			}
		}
	}

	if b.Tokens != nil {
		if len(b.Tokens) != n {
			return fmt.Errorf("batch: %d sessions but %d token rows", n, len(b.Tokens))
		}
		for i := range b.Tokens {
			if len(b.Tokens[i]) != maxSess {
				return fmt.Errorf("batch: session %d: %d token slots, want %d",
					i, len(b.Tokens[i]), maxSess)
			}
			for j, toks := range b.Tokens[i] {
				if b.UttrLens[i][j] > len(toks) {
					return fmt.Errorf("batch: session %d utterance %d: length %d exceeds %d tokens",
						i, j, b.UttrLens[i][j], len(toks))
				}
			}
		}
	}
	if b.Features != nil && len(b.Features) != n {
		return fmt.Errorf("batch: %d sessions but %d feature rows", n, len(b.Features))
	}

	if needTargets {
		if len(b.Targets) != n {
			return fmt.Errorf("batch: %d sessions but %d target rows", n, len(b.Targets))
		}
		for i, targets := range b.Targets {
			if len(targets) < b.SessLens[i] {
				return fmt.Errorf("batch: session %d: %d targets for %d utterances",
					i, len(targets), b.SessLens[i])
			}
		}
	}
	return nil
}
