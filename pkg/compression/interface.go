package compression

// Encoder transforms values in chunks. Encode returns the output completed so far and
// Flush returns whatever the encoder still holds once the input is over.
type Encoder[T any] interface {
	Encode(values []T) []T
	Flush() []T
}

type Decoder[T any] interface {
	Decode(encoded []T) ([]T, error)
	Flush() ([]T, error)
}
