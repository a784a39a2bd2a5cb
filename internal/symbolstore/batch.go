package symbolstore

import (
	"time"

	"github.com/lspdaemon/lspd/internal/types"
	"github.com/lspdaemon/lspd/internal/uidgen"
)

// maxReportedErrors caps how many per-symbol conversion errors a
// BatchConvert result carries, so a batch with many malformed inputs
// doesn't balloon the result payload.
const maxReportedErrors = 20

// RawSymbol is an unconverted symbol observation, as extracted by an
// LSP server or analyzer, before UID assignment.
type RawSymbol struct {
	uidgen.Input
	Visibility    types.Visibility
	DefRange      types.Range
	IsDefinition  bool
	Documentation string
	Metadata      []byte
}

// BatchConversionResult is the §4.5 batch-conversion report.
type BatchConversionResult struct {
	Symbols        []types.Symbol
	ErrorCount     int
	FirstNErrors   []error
	ElapsedMillis  int64
	CollisionStats map[string]int
}

// BatchConvert assigns UIDs to raw and validates the resulting
// symbols, using gen (reset at the start of the batch per spec §4.4).
// A conversion error for one raw symbol does not abort the batch; it
// is counted and, up to maxReportedErrors, retained for diagnostics.
func BatchConvert(gen *uidgen.Generator, raw []RawSymbol) BatchConversionResult {
	start := time.Now()
	gen.Reset()

	result := BatchConversionResult{
		Symbols: make([]types.Symbol, 0, len(raw)),
	}

	for _, r := range raw {
		uid, err := gen.Generate(r.Input)
		if err != nil {
			result.ErrorCount++
			if len(result.FirstNErrors) < maxReportedErrors {
				result.FirstNErrors = append(result.FirstNErrors, err)
			}
			continue
		}

		sym := types.Symbol{
			UID:                uid,
			FilePath:           r.FilePath,
			Language:           r.Language,
			Name:               r.Name,
			FullyQualifiedName: r.FullyQualifiedName,
			Kind:               r.Kind,
			Visibility:         r.Visibility,
			DefRange:           r.DefRange,
			IsDefinition:       r.IsDefinition,
			Signature:          r.Signature,
			Documentation:      r.Documentation,
			Metadata:           r.Metadata,
		}
		if err := sym.Validate(); err != nil {
			result.ErrorCount++
			if len(result.FirstNErrors) < maxReportedErrors {
				result.FirstNErrors = append(result.FirstNErrors, err)
			}
			continue
		}
		result.Symbols = append(result.Symbols, sym)
	}

	result.CollisionStats = gen.CollisionStats()
	elapsed := time.Since(start).Milliseconds()
	if elapsed < 1 {
		elapsed = 1
	}
	result.ElapsedMillis = elapsed
	return result
}
