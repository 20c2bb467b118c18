package game

import "slices"

// 効果台帳。全ての関数は新しいスライスを返し、引数を変更しない。

func HasEffect(effects []Effect, t EffectType) bool {
	return slices.ContainsFunc(effects, func(e Effect) bool { return e.Type == t })
}

// AddEffect は同種の効果を置き換えて追加します。
func AddEffect(effects []Effect, e Effect) []Effect {
	out := RemoveEffect(effects, e.Type)
	return append(out, e)
}

func RemoveEffect(effects []Effect, t EffectType) []Effect {
	out := make([]Effect, 0, len(effects))
	for _, e := range effects {
		if e.Type != t {
			out = append(out, e)
		}
	}
	return out
}

// TickEffects はシールド以外の効果を1減らし、期限切れを取り除きます。
// シールドはラウンド終了まで持続します。
func TickEffects(effects []Effect) []Effect {
	out := make([]Effect, 0, len(effects))
	for _, e := range effects {
		if e.Type != EffectShield {
			e.RoundsRemaining--
			if e.RoundsRemaining <= 0 {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
