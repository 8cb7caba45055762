package meta

import "github.com/sabletide/flac/bitstream"

// Application contains third party application specific data.
type Application struct {
	ID   uint32 // registered application ID
	Data []byte
}

func (app *Application) parse(r *bitstream.Reader, length int64) error {
	var err error
	if app.ID, err = r.ReadUnsigned(32); err != nil {
		return err
	}
	app.Data, err = r.ReadBytes(int(length - 4))
	return err
}

func (app *Application) encode(w *bitstream.Writer) error {
	if err := w.WriteUnsigned(32, app.ID); err != nil {
		return err
	}
	return w.WriteBytes(app.Data)
}
