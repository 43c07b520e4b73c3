package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"herway/safety"
)

const summarizePrompt = `You are an AI Guardian monitoring an emergency situation. Your role is to provide a brief, factual summary of the chat log for responders.
Focus on the user's condition, location updates and actions taken by guardians or authorities.
Answer with a JSON object: {"summary": string}.`

const distressPrompt = `You are an AI assistant that analyzes audio and motion sensor data to determine if a user is in distress.
A distress event can include screaming, glass breaking or sudden impacts. Correlate the audio with sudden movements or falls
from the accelerometer and gyroscope to reduce false positives.
Answer with a JSON object: {"isDistressConfirmed": boolean, "distressReason": string}.`

const hazardPrompt = `You are a safety AI that analyzes a travel route for potential environmental or event-based hazards,
such as severe weather, protests, road closures or large public gatherings.
Answer with a JSON object: {"hasHazards": boolean, "hazardSummary": string}.`

const safetyScorePrompt = `You are an AI assistant that analyzes crime data, news reports and user reports to generate a real-time safety score for a location.
The score ranges from 1 (highly unsafe) to 10 (very safe).
Answer with a JSON object: {"safetyScore": number, "reason": string}.`

const emptySummary = "No messages have been exchanged yet."

// Summarize implements safety.Summarizer.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return emptySummary, nil
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.completeJSON(ctx, summarizePrompt, "Chat log:\n"+transcript, &out); err != nil {
		return "", fmt.Errorf("summarize chat: %w", err)
	}
	return out.Summary, nil
}

// ConfirmDistress implements safety.DistressConfirmer.
func (c *Client) ConfirmDistress(ctx context.Context, sample safety.SensorSample) (safety.DistressVerdict, error) {
	user := fmt.Sprintf("Audio data: %s\nAccelerometer data: %v\nGyroscope data: %v",
		sample.AudioDataURI, sample.Accelerometer[:], sample.Gyroscope[:])

	var out safety.DistressVerdict
	if err := c.completeJSON(ctx, distressPrompt, user, &out); err != nil {
		return safety.DistressVerdict{}, fmt.Errorf("detect distress: %w", err)
	}
	return out, nil
}

type HazardReport struct {
	HasHazards    bool   `json:"hasHazards"`
	HazardSummary string `json:"hazardSummary,omitempty"`
}

func (c *Client) DetectHazards(ctx context.Context, routeDescription string) (*HazardReport, error) {
	var out HazardReport
	if err := c.completeJSON(ctx, hazardPrompt, "Route: "+routeDescription, &out); err != nil {
		return nil, fmt.Errorf("detect hazards: %w", err)
	}
	return &out, nil
}

type SafetyScoreInput struct {
	LocationDescription string `json:"locationDescription" validate:"required"`
	CrimeData           string `json:"crimeData"`
	NewsData            string `json:"newsData"`
	UserReports         string `json:"userReports"`
}

type SafetyScore struct {
	SafetyScore int    `json:"safetyScore"`
	Reason      string `json:"reason"`
}

var ErrScoreOutOfRange = errors.New("safety score out of range")

func (c *Client) SafetyScore(ctx context.Context, in SafetyScoreInput) (*SafetyScore, error) {
	user := fmt.Sprintf("Location: %s\nCrime data: %s\nNews: %s\nUser reports: %s",
		in.LocationDescription, in.CrimeData, in.NewsData, in.UserReports)

	var out struct {
		SafetyScore float64 `json:"safetyScore"`
		Reason      string  `json:"reason"`
	}
	if err := c.completeJSON(ctx, safetyScorePrompt, user, &out); err != nil {
		return nil, fmt.Errorf("generate safety score: %w", err)
	}
	score := int(out.SafetyScore + 0.5)
	if score < 1 || score > 10 {
		return nil, fmt.Errorf("%w: %v", ErrScoreOutOfRange, out.SafetyScore)
	}
	return &SafetyScore{SafetyScore: score, Reason: out.Reason}, nil
}
