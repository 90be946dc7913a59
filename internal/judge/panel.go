package judge

import (
	"context"
	"fmt"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/llm"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
)

type panelJudge struct {
	spec   config.ModelSpec
	client llm.Client
}

// Panel holds one constructed client per configured judge. Construction
// fails fast on configuration problems (e.g. a missing credential) so a
// run never reaches scoring with an unusable panel.
type Panel struct {
	judges []panelJudge
	logger logging.Logger

	// OnOutcome, when set, receives the parse outcome ("parsed" or
	// "unparsed") of every score record as it is produced.
	OnOutcome func(judgeID, outcome string)
}

// NewPanel builds clients for every judge spec via factory.
func NewPanel(specs []config.ModelSpec, factory llm.Factory, logger logging.Logger) (*Panel, error) {
	judges := make([]panelJudge, 0, len(specs))
	for _, spec := range specs {
		client, err := factory(spec, llm.JudgeDefaults())
		if err != nil {
			return nil, fmt.Errorf("construct judge client %s: %w", spec.ID, err)
		}
		judges = append(judges, panelJudge{spec: spec, client: client})
	}
	return &Panel{judges: judges, logger: logging.Named(logging.OrNop(logger), "judge")}, nil
}

// Size returns the number of configured judges.
func (p *Panel) Size() int {
	return len(p.judges)
}

// Score asks every judge to compare baseline (Response A) against candidate
// (Response B) and returns exactly one record per judge. The per-judge
// outcomes are:
//   - a response that decodes (on either attempt) yields a Parsed record
//     whose Raw is the text that decoded;
//   - both attempts unparseable yields an Unparsed record whose Raw is the
//     repair attempt's text;
//   - the repair call itself failing keeps the primary text in Raw;
//   - the primary call failing yields an Unparsed record with empty Raw.
//
// The only error return is context cancellation mid-panel.
func (p *Panel) Score(ctx context.Context, baseline, candidate string) ([]ScoreRecord, error) {
	records := make([]ScoreRecord, 0, len(p.judges))
	for _, j := range p.judges {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scoring cancelled: %w", err)
		}
		record := p.scoreOne(ctx, j, baseline, candidate)
		p.reportOutcome(record)
		records = append(records, record)
	}
	return records, nil
}

func (p *Panel) reportOutcome(record ScoreRecord) {
	if p.OnOutcome == nil {
		return
	}
	outcome := "unparsed"
	if record.Value.IsParsed() {
		outcome = "parsed"
	}
	p.OnOutcome(record.JudgeID, outcome)
}

func (p *Panel) scoreOne(ctx context.Context, j panelJudge, baseline, candidate string) ScoreRecord {
	record := ScoreRecord{
		JudgeID:   j.spec.ID,
		JudgeName: j.spec.Name,
		Value:     NewUnparsed(),
	}

	raw, err := j.client.Complete(ctx, fmt.Sprintf(scoringPrompt, baseline, candidate))
	if err != nil {
		p.logger.Warn("judge %s call failed: %v", j.spec.ID, err)
		return record
	}
	record.Raw = raw

	score, parseErr := parseScore(raw)
	if parseErr == nil {
		record.Value = NewParsed(score)
		return record
	}

	p.logger.Warn("judge %s returned non-JSON, attempting repair: %v", j.spec.ID, parseErr)
	repaired, err := j.client.Complete(ctx, fmt.Sprintf(repairPrompt, raw))
	if err != nil {
		p.logger.Warn("judge %s repair call failed, keeping raw text: %v", j.spec.ID, err)
		return record
	}
	record.Raw = repaired

	score, parseErr = parseScore(repaired)
	if parseErr == nil {
		record.Value = NewParsed(score)
		return record
	}

	p.logger.Warn("judge %s repair failed, keeping raw text: %v", j.spec.ID, parseErr)
	return record
}
