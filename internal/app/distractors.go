package app

import "photo-quiz-service/internal/domain"

const distractorCount = 3

// SelectDistractors picks three distinct wrong names for correct. Names of the
// same gender are preferred; the union of both lists is used when that group
// is too small.
func SelectDistractors(rnd Rand, correct string, gender domain.Gender, names domain.NameLists) ([distractorCount]string, error) {
	var out [distractorCount]string

	candidates := without(names.For(gender), correct)
	if len(candidates) < distractorCount {
		candidates = without(names.All(), correct)
	}
	if len(candidates) < distractorCount {
		return out, &domain.InsufficientNamesError{Answer: correct, Available: len(candidates)}
	}

	// partial Fisher-Yates: the first three slots end up uniformly sampled
	for i := 0; i < distractorCount; i++ {
		j := i + rnd.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
		out[i] = candidates[i]
	}
	return out, nil
}

// without copies names, dropping exclude and duplicates.
func without(names []string, exclude string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == exclude {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
