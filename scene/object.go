package scene

import "encoding/json"

// Kind enumerates the object primitives the graph knows how to carry.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindPolygon   Kind = "polygon"
	KindLine      Kind = "line"
	KindTextbox   Kind = "textbox"
	KindImage     Kind = "image"
	KindGroup     Kind = "group"
)

type (
	// Object is one node of the scene graph. The graph treats it as an opaque
	// unit of state: rendering, hit-testing and text layout happen in the
	// embedding engine, not here. Transform fields are in canvas coordinates
	// and independent of any viewport zoom or pan.
	Object struct {
		ID       string  `json:"id"`
		Kind     Kind    `json:"kind"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
		ScaleX   float64 `json:"scaleX"`
		ScaleY   float64 `json:"scaleY"`
		Rotation float64 `json:"rotation"` // degrees, around OriginX/OriginY
		OriginX  float64 `json:"originX"`
		OriginY  float64 `json:"originY"`
		Opacity  float64 `json:"opacity"`
		Fill     string  `json:"fill,omitempty"`
		Stroke   string  `json:"stroke,omitempty"`
		Text     string  `json:"text,omitempty"`
		// Source holds an image object's pixel source (data URI or media key).
		Source string `json:"source,omitempty"`
		// Children holds serialized members of a group.
		Children []Object `json:"children,omitempty"`
	}
)

// Clone returns a deep copy of the object.
func (o Object) Clone() Object {
	c := o
	if len(o.Children) > 0 {
		c.Children = make([]Object, len(o.Children))
		for i, child := range o.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// MarshalRaw serializes the object to its wire form for canvas operations.
func (o Object) MarshalRaw() (json.RawMessage, error) {
	return json.Marshal(o)
}

// UnmarshalFrom decodes the wire form of a canvas operation payload.
func (o *Object) UnmarshalFrom(raw json.RawMessage) error {
	return json.Unmarshal(raw, o)
}
