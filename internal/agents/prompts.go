package agents

const emotionSystemPrompt = "You are an expert emotion analysis assistant. Respond with JSON only."

const emotionPromptTemplate = `Analyze the emotional tone of the following transcript.

Tasks:
1. Identify the dominant overall emotion (single word).
2. Detect moments where emotion noticeably spikes.

For each spike, provide the timestamp in seconds, the emotion (e.g. anger,
excitement, sadness, neutral), an intensity between 0.0 and 1.0 and a short
piece of evidence.

Respond with a JSON object:
{"dominant_emotion": "<emotion>", "emotion_spikes": [{"timestamp": 12.3, "emotion": "anger", "intensity": 0.8, "evidence": "raised voice while discussing pricing"}]}

Transcript:
%s`

const taggingSystemPrompt = "You are an expert information extraction assistant. Respond with JSON only."

const taggingPromptTemplate = `Extract structured metadata from the following transcript.

Tasks:
1. Identify 5-8 high-level topics.
2. Identify important named entities (people, companies, products, locations).
3. Identify concise search keywords (single words or short phrases).

Rules: be concise, avoid duplicates, use lowercase, no explanations.

Respond with a JSON object:
{"topics": ["topic1"], "entities": ["entity1"], "keywords": ["keyword1"]}

Transcript:
%s`

const visionSystemPrompt = "You are an expert computer vision analyst. Respond with JSON only."

const visionPrompt = `Analyze the provided video frames, which are sampled in playback order.

Tasks:
1. Summarize the scenes depicted across frames.
2. Identify visual tags (objects, environments, settings).
3. Identify detected activities or actions.

Rules: be concise, avoid speculation, use lowercase, no explanations.

Respond with a JSON object:
{"scene_summaries": ["scene 1"], "visual_tags": ["tag1"], "detected_activities": ["activity1"]}`

const reasoningSystemPrompt = "You are a senior analyst capable of deep reasoning. Respond with JSON only."

const reasoningPromptTemplate = `Analyze the following media content and analysis signals.

Transcript:
%s

Dominant emotion: %s
Emotion spikes: %s
Topics: %s
Entities: %s
Visual scenes: %s

Tasks:
1. Identify the primary intent of the speaker or content.
2. Generate 3-5 key insights, each with supporting evidence and a confidence between 0 and 1.
3. Provide 2-3 high-level conclusions.

Rules: be concise, be analytical, do not repeat the transcript verbatim.

Respond with a JSON object:
{"intent": "string", "key_insights": [{"insight": "string", "evidence": "string", "confidence": 0.7}], "conclusions": ["conclusion1"]}`

const riskSystemPrompt = "You are a compliance and risk analysis expert. Respond with JSON only."

const riskPromptTemplate = `Evaluate the following media content for potential risks.

Transcript:
%s

Conclusions: %s
Topics: %s
Entities: %s

Risk categories to consider: %s.

Tasks:
1. Assign an overall risk level: low, medium, or high.
2. Identify applicable risk categories from the list above.
3. Briefly explain the risk.
4. Suggest recommended actions.

Rules: be objective, be conservative, avoid speculation, no moralizing.

Respond with a JSON object:
{"risk_level": "low|medium|high", "risk_categories": ["category1"], "explanation": "string", "recommended_actions": ["action1"]}`

const chatSystemPrompt = `You are an assistant helping users analyze media content.

You are given transcript passages retrieved for the current question, each
labelled with a number and its time range, along with the earlier turns of
the conversation.

Rules:
- Be factual and grounded in the provided passages.
- If the answer is not in the passages, say so clearly.
- Be concise but helpful. Do not invent details.

Respond with a JSON object:
{"answer": "string", "passages": [1, 2]}
where "passages" lists the numbers of the passages you relied on.`
