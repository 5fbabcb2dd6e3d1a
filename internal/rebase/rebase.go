// Package rebase переводит позиции между локальной системой координат
// вторичного мира и абсолютной системой основного мира.
//
// Все функции чистые: без побочных эффектов и общего состояния.
package rebase

import "github.com/annel0/related-world/internal/vec"

// ToAbsolute переводит позицию из системы вторичного мира в абсолютную.
//
// Обратный перевод ToRelative точен для целых координат и для дробей, сумма
// которых с началом координат представима в float64. Иначе результат
// отличается на ошибку округления: ToRelative(1000, ToAbsolute(1000, 0.1))
// даёт 0.10000000000002274. Точный путь для целых позиций: ToAbsoluteInt.
func ToAbsolute(origin vec.Vec3, relative vec.Vec3Float) vec.Vec3Float {
	return relative.Add(origin.ToFloat())
}

// ToRelative обратная к ToAbsolute операция с той же точностью: абсолютная
// позиция уже округлена до float64, поэтому вычитание начала координат может
// не вернуть исходную дробь.
func ToRelative(origin vec.Vec3, absolute vec.Vec3Float) vec.Vec3Float {
	return absolute.Sub(origin.ToFloat())
}

// ToAbsoluteInt целочисленный вариант ToAbsolute
func ToAbsoluteInt(origin, relative vec.Vec3) vec.Vec3 {
	return relative.Add(origin)
}

// ToRelativeInt целочисленный вариант ToRelative
func ToRelativeInt(origin, absolute vec.Vec3) vec.Vec3 {
	return absolute.Sub(origin)
}

// RebaseOntoLocalOrigin переводит позицию с нулевым началом координат
// в систему хоста, чьё собственное начало смещено на localOrigin.
func RebaseOntoLocalOrigin(location vec.Vec3Float, localOrigin vec.Vec3) vec.Vec3Float {
	if localOrigin.IsZero() {
		return location
	}
	return location.Sub(localOrigin.ToFloat())
}

// RebaseOntoZeroOrigin обратная к RebaseOntoLocalOrigin операция.
func RebaseOntoZeroOrigin(location vec.Vec3Float, localOrigin vec.Vec3) vec.Vec3Float {
	if localOrigin.IsZero() {
		return location
	}
	return location.Add(localOrigin.ToFloat())
}
