package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desiyatra/bargainer/pkg/composer"
	"github.com/desiyatra/bargainer/pkg/frames"
	"github.com/desiyatra/bargainer/pkg/negotiation"
	"github.com/desiyatra/bargainer/pkg/offer"
	"github.com/desiyatra/bargainer/pkg/outcome"
	"github.com/desiyatra/bargainer/pkg/session"
	"github.com/google/uuid"
)

// Defaults are the configured negotiation settings. Call meta may override
// the vendor, the three price bounds and the language.
type Defaults struct {
	Terms          negotiation.Terms
	Language       composer.Language
	PerTurnTimeout time.Duration
	Replacements   map[string]string
}

// NewSessionFactory builds orchestrators from defaults plus call_start meta.
func NewSessionFactory(def Defaults, deps session.Deps) session.Factory {
	return func(callSID string, meta map[string]string) (*session.Orchestrator, error) {
		cfg, err := sessionConfig(def, callSID, meta)
		if err != nil {
			return nil, err
		}
		return session.NewOrchestrator(cfg, deps)
	}
}

func sessionConfig(def Defaults, callSID string, meta map[string]string) (session.Config, error) {
	terms := def.Terms
	for key, dst := range map[string]*offer.Amount{
		frames.MetaTargetPrice:  &terms.TargetPrice,
		frames.MetaFloorBound:   &terms.FloorBound,
		frames.MetaCeilingBound: &terms.CeilingBound,
	} {
		raw := strings.TrimSpace(meta[key])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return session.Config{}, fmt.Errorf("engine: bad %s %q", key, raw)
		}
		*dst = offer.Amount(v)
	}

	lang := def.Language
	if raw := meta[frames.MetaLanguage]; raw != "" {
		l, ok := composer.ParseLanguage(raw)
		if !ok {
			return session.Config{}, fmt.Errorf("%w: %q", composer.ErrUnknownLanguage, raw)
		}
		lang = l
	}

	id := meta[frames.MetaSessionID]
	if id == "" {
		id = uuid.NewString()
	}
	return session.Config{
		SessionID: id,
		CallSID:   callSID,
		Vendor: outcome.Vendor{
			Name: meta[frames.MetaVendorName],
			Type: meta[frames.MetaVendorType],
		},
		Terms:          terms,
		Language:       lang,
		PerTurnTimeout: def.PerTurnTimeout,
		Replacements:   def.Replacements,
	}, nil
}
