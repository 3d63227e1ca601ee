package entity

// BoundingBox прямоугольник в пиксельных координатах исходного изображения.
type BoundingBox struct {
	X      int // координата X левого верхнего угла
	Y      int // координата Y левого верхнего угла
	Width  int
	Height int
}

// CenteredBox возвращает прямоугольник, покрывающий центральную половину
// кадра width x height. Это заглушка для визуализации, а не локализация:
// классификатор ничего не знает о положении яйца.
func CenteredBox(width, height int) BoundingBox {
	return BoundingBox{
		X:      int(float64(width) * 0.25),
		Y:      int(float64(height) * 0.25),
		Width:  int(float64(width) * 0.5),
		Height: int(float64(height) * 0.5),
	}
}

// Slice возвращает рамку как [x, y, width, height].
func (b BoundingBox) Slice() [4]int {
	return [4]int{b.X, b.Y, b.Width, b.Height}
}
