package ai

const summarizePrompt = `Summarize the following memories to roughly %d%% of their original length.
You MUST preserve: original intent, any contradictions or tensions between statements, ideas that were considered and rejected, and key decisions with their reasons.
Do not editorialize. Output only the summary text.

Memories:
%s`

const summarizeDeltaPrompt = `You previously produced this summary:

%s

New memories have arrived. Produce an updated summary at roughly %d%% of the combined length, focusing on what the new evidence adds or changes.
You MUST preserve: original intent, contradictions, rejected ideas, and key decisions.
Output only the summary text.

New memories:
%s`

const confidencePrompt = `Score how confident an observer should be in the following claim, given the context.
Respond with ONLY a JSON object: {"min": <0-1>, "max": <0-1>, "mean": <0-1>} where min <= mean <= max.

Claim: %s
Context: %s`

const contradictionPrompt = `Do these two statements contradict each other?
Respond with ONLY one word: "true", "false", or "unknown".

Statement A: %s
Statement B: %s`

const entitiesPrompt = `Extract the named entities from the text below.
Respond with ONLY a JSON array: [{"entity": "...", "type": "...", "attributes": {}}]

Text:
%s`
