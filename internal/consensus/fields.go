package consensus

import (
	"fmt"
	"sort"
)

// fieldContribution is one extractor's vote on a field.
type fieldContribution struct {
	value      interface{}
	confidence float64
	model      string
}

// dataConsensus is the outcome of the header-field reconciliation pass.
type dataConsensus struct {
	fields map[string]fieldConsensus

	// fieldModels maps each field to the model whose value won.
	fieldModels map[string]string

	// agreement is the fraction of fields resolved by exact agreement.
	agreement float64

	// confidence is the mean of per-field consensus confidences.
	confidence float64
}

// buildDataConsensus reconciles the header-field maps of all extraction
// attempts. A single attempt passes through with its own confidence;
// multiple attempts are reconciled field by field.
func buildDataConsensus(results []ExtractionResult) dataConsensus {
	out := dataConsensus{
		fields:      map[string]fieldConsensus{},
		fieldModels: map[string]string{},
	}
	switch len(results) {
	case 0:
		return out
	case 1:
		for name, fv := range results[0].Data {
			out.fields[name] = fieldConsensus{value: fv.Value, confidence: fv.Confidence}
			out.fieldModels[name] = results[0].Model
		}
		out.agreement = 1
		out.confidence = results[0].Confidence
		return out
	}

	contributions := map[string][]fieldContribution{}
	for _, result := range results {
		for name, fv := range result.Data {
			contributions[name] = append(contributions[name], fieldContribution{
				value:      fv.Value,
				confidence: fv.Confidence,
				model:      result.Model,
			})
		}
	}

	// Iterate field names in stable order so ties resolve the same way
	// on every run.
	names := make([]string, 0, len(contributions))
	for name := range contributions {
		names = append(names, name)
	}
	sort.Strings(names)

	agreed := 0
	confidenceSum := 0.0
	for _, name := range names {
		resolved, exactAgreement := resolveField(contributions[name])
		out.fields[name] = fieldConsensus{value: resolved.value, confidence: resolved.confidence}
		out.fieldModels[name] = resolved.model
		confidenceSum += resolved.confidence
		if exactAgreement {
			agreed++
		}
	}
	if len(names) > 0 {
		out.agreement = float64(agreed) / float64(len(names))
		out.confidence = confidenceSum / float64(len(names))
	}
	return out
}

// resolveField picks one value for a field from all contributions.
func resolveField(votes []fieldContribution) (fieldContribution, bool) {
	distinct := map[string]struct{}{}
	for _, v := range votes {
		distinct[fmt.Sprintf("%v", v.value)] = struct{}{}
	}

	if len(distinct) == 1 {
		resolved := votes[0]
		resolved.confidence = meanConfidence(votes)
		return resolved, true
	}

	if allStrings(votes) {
		if cluster, ok := singleCluster(votes); ok {
			return cluster, false
		}
	}

	// Genuine disagreement: highest confidence wins.
	best := votes[0]
	for _, v := range votes[1:] {
		if v.confidence > best.confidence {
			best = v
		}
	}
	return best, false
}

// singleCluster reports whether every string value joins one similarity
// cluster, returning the cluster's representative with its running-averaged
// confidence.
func singleCluster(votes []fieldContribution) (fieldContribution, bool) {
	representative := votes[0]
	confidence := votes[0].confidence
	for i, v := range votes[1:] {
		if stringSimilarity(representative.value.(string), v.value.(string)) <= clusterThreshold {
			return fieldContribution{}, false
		}
		confidence = (confidence*float64(i+1) + v.confidence) / float64(i+2)
	}
	representative.confidence = confidence
	return representative, true
}

func allStrings(votes []fieldContribution) bool {
	for _, v := range votes {
		if _, ok := v.value.(string); !ok {
			return false
		}
	}
	return true
}

func meanConfidence(votes []fieldContribution) float64 {
	if len(votes) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range votes {
		sum += v.confidence
	}
	return sum / float64(len(votes))
}
