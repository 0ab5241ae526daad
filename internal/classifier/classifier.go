package classifier

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoTrainingData is returned by Train when no samples are loaded.
var ErrNoTrainingData = errors.New("classifier: no training data")

// Thresholds and base weights of the trained scoring model. The base
// weights are each score's starting point; training rescales them from
// observed performance.
const (
	visionThreshold    = 0.7
	consensusThreshold = 0.6

	// invoiceDensityThreshold triggers consensus routing in the untrained
	// fallback rules: invoice-like documents benefit most from multiple
	// extraction attempts.
	invoiceDensityThreshold = 0.1

	baseProcessingTime = 1000 * time.Millisecond

	// lengthNorm normalizes raw byte counts into [0,1] for scoring.
	lengthNorm = 1_000_000
)

func defaultVisionWeights() map[string]float64 {
	return map[string]float64{
		"imageDensity":   0.4,
		"tableDensity":   0.3,
		"fileType":       0.2,
		"documentLength": 0.1,
	}
}

func defaultConsensusWeights() map[string]float64 {
	return map[string]float64{
		"textComplexity":    0.3,
		"keywordDensity":    0.3,
		"ocrQuality":        0.2,
		"hasStructuredData": 0.2,
	}
}

func defaultPriorityWeights() map[string]float64 {
	return map[string]float64{
		"documentLength": 0.25,
		"ocrQuality":     0.25,
		"textComplexity": 0.25,
		"tableDensity":   0.25,
	}
}

// Classifier decides whether a document needs vision-enhanced and/or
// consensus-enhanced processing.
//
// Construct one per composition root; instances are safe for concurrent
// use but training state is process-local.
type Classifier struct {
	logger *zap.Logger

	mu               sync.RWMutex
	trained          bool
	samples          []TrainingSample
	visionWeights    map[string]float64
	consensusWeights map[string]float64
	priorityWeights  map[string]float64
}

// New creates an untrained classifier.
func New(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		logger:           logger,
		visionWeights:    defaultVisionWeights(),
		consensusWeights: defaultConsensusWeights(),
		priorityWeights:  defaultPriorityWeights(),
	}
}

// Trained reports whether the classifier has absorbed training samples.
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trained
}

// ClassifyDocument produces a routing decision for the given features.
// Untrained classifiers use fixed rules; trained ones use weighted
// composite scores.
func (c *Classifier) ClassifyDocument(features DocumentFeatures) RoutingDecision {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.trained {
		return c.classifyRuleBased(features)
	}
	return c.classifyWeighted(features)
}

// classifyRuleBased is the untrained fallback routing.
func (c *Classifier) classifyRuleBased(features DocumentFeatures) RoutingDecision {
	useVision := features.TableDensity > 0.5 || features.ImageDensity > 0.6
	useConsensus := features.TextComplexity > 0.7 ||
		features.KeywordDensity["invoice"] > invoiceDensityThreshold

	var priority PriorityLevel
	switch {
	case features.DocumentLength > 500_000 || features.TextComplexity > 0.8:
		priority = PriorityHigh
	case features.DocumentLength < 100_000:
		priority = PriorityLow
	default:
		priority = PriorityMedium
	}

	decision := RoutingDecision{
		UseVision:     useVision,
		UseConsensus:  useConsensus,
		PriorityLevel: priority,
		Confidence:    0.6,
		Reasoning:     "rule-based routing (untrained classifier)",
	}
	finalizeDecision(&decision, features)
	return decision
}

// classifyWeighted scores the document against the trained weights.
func (c *Classifier) classifyWeighted(features DocumentFeatures) RoutingDecision {
	visionScore := weightedScore(features, c.visionWeights)
	consensusScore := weightedScore(features, c.consensusWeights)
	priorityScore := weightedScore(features, c.priorityWeights)

	var priority PriorityLevel
	switch {
	case priorityScore > 0.66:
		priority = PriorityHigh
	case priorityScore < 0.33:
		priority = PriorityLow
	default:
		priority = PriorityMedium
	}

	confidence := (visionScore + consensusScore + priorityScore) / 3
	if confidence > 1 {
		confidence = 1
	}

	decision := RoutingDecision{
		UseVision:     visionScore > visionThreshold,
		UseConsensus:  consensusScore > consensusThreshold,
		PriorityLevel: priority,
		Confidence:    confidence,
		Reasoning: fmt.Sprintf("weighted routing: vision=%.2f consensus=%.2f priority=%.2f",
			visionScore, consensusScore, priorityScore),
	}
	finalizeDecision(&decision, features)
	return decision
}

// finalizeDecision fills the pipeline recommendation and time estimate.
func finalizeDecision(decision *RoutingDecision, features DocumentFeatures) {
	switch {
	case decision.UseConsensus:
		decision.RecommendedPipeline = PipelineConsensusEnhanced
	case decision.UseVision:
		decision.RecommendedPipeline = PipelineVisionEnhanced
	default:
		decision.RecommendedPipeline = PipelineBasicExtraction
	}
	decision.EstimatedProcessingTime = estimateProcessingTime(features, decision.RecommendedPipeline)
}

// estimateProcessingTime starts from a 1s base, scaled by document
// characteristics, then by the selected pipeline's cost multiplier.
func estimateProcessingTime(features DocumentFeatures, pipeline Pipeline) time.Duration {
	estimate := float64(baseProcessingTime)
	if features.DocumentLength > 500_000 {
		estimate *= 2.0
	}
	if features.TextComplexity > 0.7 {
		estimate *= 1.5
	}
	if features.TableDensity > 0.5 {
		estimate *= 1.8
	}
	switch pipeline {
	case PipelineVisionEnhanced:
		estimate *= 1.5
	case PipelineConsensusEnhanced:
		estimate *= 2.0
	}
	return time.Duration(estimate)
}

// weightedScore computes the dot product of feature values and weights.
func weightedScore(features DocumentFeatures, weights map[string]float64) float64 {
	score := 0.0
	for name, weight := range weights {
		score += featureValue(features, name) * weight
	}
	return score
}

// featureValue projects one named feature into [0,1].
func featureValue(features DocumentFeatures, name string) float64 {
	switch name {
	case "imageDensity":
		return features.ImageDensity
	case "tableDensity":
		return features.TableDensity
	case "textComplexity":
		return features.TextComplexity
	case "ocrQuality":
		return features.OCRQuality
	case "documentLength":
		return clamp01(float64(features.DocumentLength) / lengthNorm)
	case "fileType":
		switch features.FileType {
		case "image":
			return 1.0
		case "pdf":
			return 0.7
		default:
			return 0.2
		}
	case "keywordDensity":
		total := 0.0
		for _, d := range features.KeywordDensity {
			total += d
		}
		return clamp01(total)
	case "hasStructuredData":
		if features.HasStructuredData {
			return 1.0
		}
		return 0.0
	default:
		return 0.0
	}
}
