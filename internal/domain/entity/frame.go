package entity

import "fmt"

// ChannelOrder порядок трёх цветовых каналов в пикселе.
type ChannelOrder int

const (
	RGB ChannelOrder = iota
	BGR
)

func (o ChannelOrder) String() string {
	switch o {
	case RGB:
		return "RGB"
	case BGR:
		return "BGR"
	default:
		return fmt.Sprintf("ChannelOrder(%d)", int(o))
	}
}

// Frame декодированная трёхканальная сетка пикселей. Живёт одно сообщение.
type Frame struct {
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []uint8 // построчно, 3 байта на пиксель в порядке Order
}

// NewFrame создаёт кадр, заполненный нулями.
func NewFrame(width, height int, order ChannelOrder) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Order:  order,
		Pix:    make([]uint8, width*height*3),
	}
}

// Offset возвращает индекс первого канала пикселя (x, y) в Pix.
func (f *Frame) Offset(x, y int) int {
	return (y*f.Width + x) * 3
}

// Valid проверяет, что Pix соответствует заявленным размерам.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// Reorder возвращает кадр в нужном порядке каналов, меняя местами первый
// и третий канал при необходимости. Исходный кадр не меняется.
func (f *Frame) Reorder(order ChannelOrder) *Frame {
	if f.Order == order {
		return f
	}
	out := NewFrame(f.Width, f.Height, order)
	for i := 0; i+2 < len(f.Pix); i += 3 {
		out.Pix[i] = f.Pix[i+2]
		out.Pix[i+1] = f.Pix[i+1]
		out.Pix[i+2] = f.Pix[i]
	}
	return out
}
