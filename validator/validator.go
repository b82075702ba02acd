package validator

import (
	"errors"
	"strconv"
	"time"

	"github.com/mezonai/hashchain/block"
	chainerrors "github.com/mezonai/hashchain/errors"
	"github.com/mezonai/hashchain/logx"
	"github.com/mezonai/hashchain/monitoring"
)

// Violation is one tamper finding. It is a report entry, never a returned error.
type Violation struct {
	Height   uint64                `json:"height"`
	Code     chainerrors.ErrorCode `json:"code"`
	Expected string                `json:"expected,omitempty"`
	Actual   string                `json:"actual,omitempty"`
}

// Report is the result of a full-chain scan
type Report struct {
	Height     int64       `json:"height"`
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations"`
}

// Valid reports whether the scan found nothing
func (r *Report) Valid() bool {
	return len(r.Violations) == 0
}

// Heights lists offending heights in scan order. A height failing several
// checks appears once per failure.
func (r *Report) Heights() []uint64 {
	out := make([]uint64, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Height)
	}
	return out
}

// BlockCheck holds both digests of a single block
type BlockCheck struct {
	Height   uint64 `json:"height"`
	Stored   string `json:"stored"`
	Computed string `json:"computed"`
	Valid    bool   `json:"valid"`
}

// Validator detects tampering. It only reads.
type Validator struct {
	chain ChainReader
}

// NewValidator creates a validator over chain
func NewValidator(chain ChainReader) *Validator {
	return &Validator{chain: chain}
}

// InspectBlock recomputes the hash of the block at height
func (v *Validator) InspectBlock(height uint64) (*BlockCheck, error) {
	b, err := v.chain.GetByHeight(height)
	if err != nil {
		return nil, err
	}
	return inspect(height, b)
}

func inspect(height uint64, b *block.Block) (*BlockCheck, error) {
	ok, computed, err := b.Verify()
	if err != nil {
		return nil, chainerrors.NewStoreRead(height, err)
	}
	if !ok {
		logx.Warn("VALIDATOR", "Block #", height, " invalid hash: ", b.Hash, " <> ", computed)
	}
	return &BlockCheck{
		Height:   height,
		Stored:   b.Hash,
		Computed: computed,
		Valid:    ok,
	}, nil
}

// ValidateBlock reports whether the stored hash of the block at height matches
// its recomputed hash
func (v *Validator) ValidateBlock(height uint64) (bool, error) {
	check, err := v.InspectBlock(height)
	if err != nil {
		return false, err
	}
	return check.Valid, nil
}

// ValidateChain scans every height and returns the offending ones.
// An empty result means the chain is intact.
func (v *Validator) ValidateChain() ([]uint64, error) {
	report, err := v.ValidateChainReport()
	if err != nil {
		return nil, err
	}
	return report.Heights(), nil
}

// ValidateChainReport checks the self-hash of every block 0..H, the top one
// included, and the link from each block i < H to block i+1. The scan never
// stops early on a finding; only store failures abort it.
func (v *Validator) ValidateChainReport() (*Report, error) {
	start := time.Now()
	defer func() {
		monitoring.RecordValidation(time.Since(start))
	}()

	height, err := v.chain.Height()
	if err != nil {
		return nil, err
	}

	report := &Report{Height: height, Violations: []Violation{}}
	if height < 0 {
		return report, nil
	}
	top := uint64(height)

	cur, err := v.fetch(0, report)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); ; i++ {
		if cur != nil {
			if err := v.checkSelf(i, cur, report); err != nil {
				return nil, err
			}
		}
		if i == top {
			break
		}

		next, err := v.fetch(i+1, report)
		if err != nil {
			return nil, err
		}
		if cur != nil && next != nil && !next.LinksTo(cur) {
			report.add(Violation{
				Height:   i,
				Code:     chainerrors.ErrCodeBrokenLink,
				Expected: cur.Hash,
				Actual:   next.PreviousBlockHash,
			})
		}
		cur = next
	}

	if report.Valid() {
		logx.Info("VALIDATOR", "Chain valid up to height ", height)
	} else {
		logx.Warn("VALIDATOR", "Chain has ", len(report.Violations), " violations at heights ", report.Heights())
	}
	return report, nil
}

// fetch returns nil without error for a missing or undecodable block,
// recording it. Link checks against a nil block are skipped.
func (v *Validator) fetch(height uint64, report *Report) (*block.Block, error) {
	b, err := v.chain.GetByHeight(height)
	if errors.Is(err, chainerrors.ErrNotFound) {
		report.add(Violation{Height: height, Code: chainerrors.ErrCodeMissingBlock})
		return nil, nil
	}
	if errors.Is(err, chainerrors.ErrCorruptBlock) {
		report.add(Violation{Height: height, Code: chainerrors.ErrCodeCorruptBlock})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	report.Checked++
	return b, nil
}

func (v *Validator) checkSelf(height uint64, b *block.Block, report *Report) error {
	if b.Height != height {
		report.add(Violation{
			Height:   height,
			Code:     chainerrors.ErrCodeHeightMismatch,
			Expected: strconv.FormatUint(height, 10),
			Actual:   strconv.FormatUint(b.Height, 10),
		})
	}

	check, err := inspect(height, b)
	if err != nil {
		return err
	}
	if !check.Valid {
		report.add(Violation{
			Height:   height,
			Code:     chainerrors.ErrCodeHashMismatch,
			Expected: check.Stored,
			Actual:   check.Computed,
		})
	}
	return nil
}

func (r *Report) add(v Violation) {
	monitoring.RecordViolation(string(v.Code))
	r.Violations = append(r.Violations, v)
}
