package app

import "photo-quiz-service/internal/domain"

// DefaultSessionSize is the number of questions asked per session.
const DefaultSessionSize = 10

// BuildSession samples min(size, pool size) distinct records and attaches
// four shuffled options to each. Any record without enough distractors
// aborts the whole build.
func BuildSession(rnd Rand, pool domain.Pool, size int) ([]domain.Question, error) {
	if pool.Size() == 0 {
		return nil, domain.ErrEmptyPool
	}
	if size <= 0 {
		size = DefaultSessionSize
	}
	if size > pool.Size() {
		size = pool.Size()
	}

	order := rnd.Perm(pool.Size())[:size]
	questions := make([]domain.Question, 0, size)
	for _, idx := range order {
		rec := pool.Records[idx]
		wrong, err := SelectDistractors(rnd, rec.Answer, rec.Gender, pool.Names)
		if err != nil {
			return nil, err
		}

		q := domain.Question{
			ImageRef: rec.ImageRef,
			Answer:   rec.Answer,
			Gender:   rec.Gender,
		}
		q.Options = [4]string{wrong[0], wrong[1], wrong[2], rec.Answer}
		rnd.Shuffle(len(q.Options), func(i, j int) {
			q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
		})
		questions = append(questions, q)
	}
	return questions, nil
}
