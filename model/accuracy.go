package model

// Accuracy measures the fraction of real utterance
// positions whose decoded label matches the target.
//
// Sessions are processed in groups of batchSize; a zero
// batchSize evaluates everything at once.
func Accuracy(m *Model, samples SampleList, batchSize int) (float64, error) {
	if batchSize == 0 {
		batchSize = samples.Len()
	}
	var correct, total int
	for i := 0; i < samples.Len(); i += batchSize {
		j := i + batchSize
		if j > samples.Len() {
			j = samples.Len()
		}
		b, err := NewBatch(samples[i:j])
		if err != nil {
			return 0, err
		}
		if err := b.Check(true); err != nil {
			return 0, err
		}
		for k, labels := range m.Decode(b) {
			for pos, label := range labels {
				if label == b.Targets[k][pos] {
					correct++
				}
				total++
			}
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}
