package cbt

// Prompt templates owned by this package. The detection prompt embeds the
// candidate output via %s; the revision wrapper embeds the previous answer
// and the instruction, in that order.

const detectionPrompt = `You are an AI-CBT meta-agent evaluating another AI model's reasoning.

Your goal is to detect cognitive-style distortions and guide the model
toward clearer, more grounded reasoning.

Analyze the following model output:

--- BEGIN OUTPUT ---
%s
--- END OUTPUT ---

Identify any distortions such as:
- overgeneralization
- black-and-white (all-or-nothing) thinking
- unwarranted certainty or overconfidence
- hallucinated justifications or facts
- ignoring important counterexamples or caveats
- contradictions within the answer
- oversimplified or shallow explanations
- emotionally loaded language inappropriate for an AI

Then:

1. List each distortion type you detect.
2. Briefly explain how they show up in this output.
3. Provide high-level corrective guidance.
4. Produce a concrete "revision instruction" that the original model
   can follow to generate a better answer.

Return your response in pure JSON, with this exact structure:

{
  "distortions": ["..."],
  "explanation": "...",
  "guidance": "...",
  "revision_instruction": "..."
}`

const repairPrompt = `Convert the following text into valid JSON without changing the semantic content.
If it already looks like JSON but has minor issues, fix them.

TEXT:
%s`

const revisionWrapper = `You produced a previous answer that contained some reasoning issues.

Here is your previous answer:
---
%s
---

Follow this revision instruction:
"%s"

Revise your prior answer to:
- remove or reduce the reasoning distortions,
- add nuance and grounded reasoning,
- avoid hallucinations and unjustified certainty,
- remain clear and logically structured.

Now produce your corrected final answer.`

// DefaultRevisionInstruction substitutes for an absent or empty
// revision_instruction in an otherwise parseable critique.
const DefaultRevisionInstruction = "Re-evaluate your answer and improve clarity, nuance, and grounding, " +
	"reducing any distortions or overconfidence."
