// Package dispatcher drives the listen -> process -> speak interaction cycle.
// One goroutine consumes utterances strictly in arrival order, applies the
// classified command to the cart, and queues the spoken confirmation before
// taking the next command.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/SoyDuilio/quevendi/internal/cart"
	"github.com/SoyDuilio/quevendi/internal/classifier"
	"github.com/SoyDuilio/quevendi/internal/command"
	"github.com/SoyDuilio/quevendi/internal/gateway"
	"github.com/SoyDuilio/quevendi/internal/speech"
)

// State is the interaction state. Exactly one is active at a time.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	// StateChoosing is the awaiting-disambiguation sub-state: a product query
	// matched several catalog entries and the cashier must pick one.
	StateChoosing State = "awaiting_disambiguation"
)

// Classifier turns utterance text into a raw command body.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]byte, error)
}

// Submitter writes the finished sale to the backend.
type Submitter interface {
	Submit(ctx context.Context, sale gateway.Sale) (gateway.SaleResult, error)
}

// Speaker is the ordered voice feedback queue.
type Speaker interface {
	Say(text string)
	SayWait(text string) <-chan struct{}
	Play(t speech.Tone)
}

// Events are fire-and-forget notifications for the presentation layer.
// Nil fields are skipped.
type Events struct {
	CartChanged  func()
	SalesUpdated func()
	StateChanged func(State)
	Choose       func(command.Choice)
	Transcript   func(string)
}

// Dispatcher owns the session context: the cart, the payment method, and the
// interaction state. No ambient globals.
type Dispatcher struct {
	classifier Classifier
	cart       *cart.Engine
	sales      Submitter
	speaker    Speaker
	ev         Events

	utterances chan string
	selections chan int

	mu            sync.Mutex
	state         State
	pending       *command.Choice
	paymentMethod string
}

func New(cl Classifier, c *cart.Engine, s Submitter, sp Speaker, ev Events) *Dispatcher {
	return &Dispatcher{
		classifier:    cl,
		cart:          c,
		sales:         s,
		speaker:       sp,
		ev:            ev,
		utterances:    make(chan string, 64),
		selections:    make(chan int, 8),
		state:         StateIdle,
		paymentMethod: "efectivo",
	}
}

// Run consumes queued utterances and selections until ctx is cancelled.
// At most one command is in flight; a command arriving while a response is
// spoken waits its turn.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.setState(StateListening)
	for {
		select {
		case <-ctx.Done():
			d.setState(StateIdle)
			return ctx.Err()
		case text := <-d.utterances:
			d.process(ctx, text)
		case idx := <-d.selections:
			d.choose(idx)
		}
	}
}

// Offer queues a recognized utterance. Blocks only if 64 commands are already
// pending, preserving arrival order in all cases.
func (d *Dispatcher) Offer(text string) {
	d.utterances <- text
}

// Select resolves a pending disambiguation by option index (zero-based),
// typically from a tap on the option list.
func (d *Dispatcher) Select(index int) {
	select {
	case d.selections <- index:
	default:
		log.Printf("dispatcher: selection dropped, queue full")
	}
}

// SetPaymentMethod changes the payment method used on the next confirm.
// Driven by a UI control, never by voice.
func (d *Dispatcher) SetPaymentMethod(method string) {
	if method == "" {
		return
	}
	d.mu.Lock()
	d.paymentMethod = method
	d.mu.Unlock()
	log.Printf("dispatcher: payment method %s", method)
}

// PaymentMethod returns the method the next sale will carry.
func (d *Dispatcher) PaymentMethod() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paymentMethod
}

// State returns the current interaction state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Cart exposes the engine for read access by the listener and HTTP surface.
func (d *Dispatcher) Cart() *cart.Engine { return d.cart }

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	changed := d.state != s
	d.state = s
	d.mu.Unlock()
	if changed && d.ev.StateChanged != nil {
		d.ev.StateChanged(s)
	}
}

func (d *Dispatcher) cartChanged() {
	if d.ev.CartChanged != nil {
		d.ev.CartChanged()
	}
}

// say queues the turn's final feedback and waits for it to finish playing, so
// a new processing cycle never overlaps the spoken response.
func (d *Dispatcher) say(text string) {
	<-d.speaker.SayWait(text)
}

func (d *Dispatcher) process(ctx context.Context, text string) {
	d.setState(StateProcessing)
	if d.ev.Transcript != nil {
		d.ev.Transcript(text)
	}

	// a spoken bare index answers a pending disambiguation directly
	d.mu.Lock()
	pending := d.pending
	d.mu.Unlock()
	if pending != nil {
		if idx, ok := parseChoiceIndex(text, len(pending.Options)); ok {
			d.applyChoice(*pending, idx)
			return
		}
		// any other utterance abandons the choice and is classified normally
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()
	}

	body, err := d.classifier.Classify(ctx, text)
	if err != nil {
		d.didNotUnderstand(err)
		return
	}
	cmd, err := command.Decode(body)
	if err != nil {
		d.didNotUnderstand(err)
		return
	}

	switch cmd.Kind {
	case command.KindCancel:
		d.handleCancel()
	case command.KindConfirm:
		d.handleConfirm(ctx)
	case command.KindAdd:
		d.handleAdd(cmd)
	case command.KindSale:
		d.handleSale(cmd)
	case command.KindChangePrice:
		d.handleChangePrice(cmd)
	case command.KindChangeProduct:
		d.handleChangeProduct(cmd)
	case command.KindRemove:
		d.handleRemove(cmd)
	case command.KindAmbiguous:
		d.handleAmbiguous(cmd)
		return // stays in StateChoosing
	default:
		// unknown tags mutate nothing; not an error
		log.Printf("dispatcher: unknown command type %q", cmd.Kind)
	}
	d.setState(StateListening)
}

func (d *Dispatcher) didNotUnderstand(err error) {
	log.Printf("dispatcher: %v", err)
	reason := err.Error()
	var ce *classifier.ClassificationError
	if errors.As(err, &ce) {
		reason = ce.Reason
	}
	d.speaker.Play(speech.ToneError)
	d.say(fmt.Sprintf("No entendí ese comando. %s", reason))
	d.setState(StateListening)
}

func (d *Dispatcher) handleCancel() {
	if d.cart.Len() == 0 {
		d.say("No hay productos en el carrito")
		return
	}
	d.cart.Clear()
	d.cartChanged()
	d.speaker.Play(speech.ToneCancel)
	d.say("Venta cancelada")
}

func (d *Dispatcher) handleConfirm(ctx context.Context) {
	items := d.cart.Items()
	if len(items) == 0 {
		d.speaker.Play(speech.ToneError)
		d.say("El carrito está vacío")
		return
	}

	sale := gateway.Sale{
		Items:         make([]gateway.SaleLine, 0, len(items)),
		PaymentMethod: d.PaymentMethod(),
	}
	for _, it := range items {
		sale.Items = append(sale.Items, gateway.SaleLine{
			ProductID: it.Product.ID,
			Quantity:  it.Quantity,
			UnitPrice: it.Product.Price,
			Subtotal:  it.Subtotal,
		})
	}

	res, err := d.sales.Submit(ctx, sale)
	if err != nil {
		// cart stays intact so the cashier can retry
		log.Printf("dispatcher: submit failed: %v", err)
		detail := err.Error()
		var se *gateway.SubmissionError
		if errors.As(err, &se) {
			detail = se.Detail
		}
		d.speaker.Play(speech.ToneError)
		d.say(fmt.Sprintf("Error al guardar venta: %s", detail))
		return
	}

	total := d.cart.Total()
	d.cart.Clear()
	d.cartChanged()
	if d.ev.SalesUpdated != nil {
		d.ev.SalesUpdated()
	}
	log.Printf("dispatcher: sale %d confirmed, total %.2f", res.ID, total)
	d.speaker.Play(speech.ToneConfirm)
	d.say(fmt.Sprintf("Venta confirmada por %s. Siguiente cliente", cart.FormatPrice(total)))
}

func (d *Dispatcher) handleAdd(cmd command.Command) {
	if len(cmd.Items) == 0 {
		log.Printf("dispatcher: add with no items")
		return
	}
	total := d.cart.Add(cmd.Items)
	d.cartChanged()
	summary := fmt.Sprintf("Agregado %s. Van %s", cart.Summary(cmd.Items), cart.FormatPrice(total))
	d.finishTurn(summary, cmd.Warning)
}

func (d *Dispatcher) handleSale(cmd command.Command) {
	if len(cmd.Items) == 0 {
		log.Printf("dispatcher: sale with no items")
		return
	}
	total := d.cart.Replace(cmd.Items)
	d.cartChanged()
	summary := fmt.Sprintf("%s. Van %s", cart.Summary(cmd.Items), cart.FormatPrice(total))
	d.finishTurn(summary, cmd.Warning)
}

// finishTurn speaks the summary and an optional classifier warning behind it,
// waiting on the last line so the next command starts with a quiet channel.
func (d *Dispatcher) finishTurn(summary, warning string) {
	if warning == "" {
		d.say(summary)
		return
	}
	d.speaker.Say(summary)
	d.say(warning)
}

func (d *Dispatcher) handleChangePrice(cmd command.Command) {
	if cmd.NewPrice < 0 {
		// malformed classifier payload; nothing to confirm verbally
		log.Printf("dispatcher: change_price with negative price %.2f", cmd.NewPrice)
		return
	}
	it, old, err := d.cart.ChangePrice(cmd.ProductQuery, cmd.NewPrice)
	if err != nil {
		d.say(fmt.Sprintf("No encontré %s en el carrito", cmd.ProductQuery))
		return
	}
	d.cartChanged()
	d.say(fmt.Sprintf("Precio de %s cambiado de %s a %s. Nuevo total: %s",
		it.Product.Name, cart.FormatPrice(old), cart.FormatPrice(cmd.NewPrice), cart.FormatPrice(d.cart.Total())))
}

func (d *Dispatcher) handleChangeProduct(cmd command.Command) {
	if cmd.OldProduct == nil || cmd.NewProduct == nil {
		log.Printf("dispatcher: change_product missing products")
		return
	}
	if _, err := d.cart.ChangeProduct(cmd.OldProduct.ID, *cmd.NewProduct); err != nil {
		d.say(fmt.Sprintf("No encontré %s en el carrito", cmd.OldProduct.Name))
		return
	}
	d.cartChanged()
	d.say(fmt.Sprintf("Cambiado %s por %s", cmd.OldProduct.Name, cmd.NewProduct.Name))
}

func (d *Dispatcher) handleRemove(cmd command.Command) {
	if cmd.Product == nil {
		log.Printf("dispatcher: remove missing product")
		return
	}
	removed, err := d.cart.RemoveByProductID(cmd.Product.ID)
	if err != nil {
		d.speaker.Play(speech.ToneError)
		d.say(fmt.Sprintf("No encontré %s en el carrito", cmd.Product.Name))
		return
	}
	d.cartChanged()
	d.say(fmt.Sprintf("Eliminado %s", removed.Product.Name))
}

func (d *Dispatcher) handleAmbiguous(cmd command.Command) {
	if len(cmd.Ambiguous) == 0 {
		log.Printf("dispatcher: ambiguous with no choices")
		d.setState(StateListening)
		return
	}
	choice := cmd.Ambiguous[0]
	if len(cmd.Ambiguous) > 1 {
		log.Printf("dispatcher: %d extra ambiguous queries dropped", len(cmd.Ambiguous)-1)
	}
	if len(choice.Options) == 0 {
		d.setState(StateListening)
		return
	}

	d.mu.Lock()
	d.pending = &choice
	d.mu.Unlock()

	var opts string
	for i, opt := range choice.Options {
		if i > 0 {
			opts += ", "
		}
		opts += fmt.Sprintf("%d: %s", i+1, opt.Name)
	}
	if d.ev.Choose != nil {
		d.ev.Choose(choice)
	}
	d.say(fmt.Sprintf("Encontré varios %s. %s. ¿Cuál quieres?", choice.Query, opts))
	d.setState(StateChoosing)
}

// choose handles a tap selection from the UI.
func (d *Dispatcher) choose(index int) {
	d.mu.Lock()
	pending := d.pending
	d.mu.Unlock()
	if pending == nil {
		log.Printf("dispatcher: selection %d with nothing pending", index)
		return
	}
	if index < 0 || index >= len(pending.Options) {
		log.Printf("dispatcher: selection %d out of range", index)
		return
	}
	d.applyChoice(*pending, index)
}

func (d *Dispatcher) applyChoice(choice command.Choice, index int) {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()

	selected := choice.Options[index]
	total := d.cart.Add([]cart.Item{{Product: selected, Quantity: 1}})
	d.cartChanged()
	d.say(fmt.Sprintf("Un %s. Van %s", selected.Name, cart.FormatPrice(total)))
	d.setState(StateListening)
}
