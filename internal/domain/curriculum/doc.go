// Package curriculum описывает учебную программу и расчёт наград за прогресс.
//
// Программа состоит из упорядоченных поясов (Track), каждый пояс из уровней
// (stage), каждый уровень из уроков (unit). Позиция студента - тройка
// (пояс, уровень, урок). Поясов фиксированное число, порядок задан таблицей
// trackTable и не меняется во время работы.
//
// # Основные типы
//
//   - Schedule: неизменяемая таблица TrackSpec, ключ (пояс, путь обучения)
//   - Calculator: чистые функции поверх Schedule (валидация, кумулятивные счётчики,
//     ожидаемый баланс, переход к следующему уроку)
//   - Rate: ставка за урок в полу-квартерах, с правилом чередования floor/ceil
//
// Все денежные величины считаются в целых квартерах (4 квартера = 1 единица).
// Дробные ставки хранятся в полу-квартерах, чтобы не использовать float.
//
//	schedule, err := curriculum.NewSchedule(curriculum.DefaultPath, specs...)
//	calc := curriculum.NewCalculator(schedule)
//	expected, err := calc.ExpectedBalance(curriculum.DefaultPath, curriculum.Position{
//	    Track: curriculum.Yellow, Stage: 1, Unit: 1,
//	})
package curriculum
